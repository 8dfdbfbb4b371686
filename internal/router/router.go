// Package router wires the HTTP surface of the API under /api/v1.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/tour-booking-api/internal/config"
	"github.com/iliyamo/tour-booking-api/internal/handler"
	"github.com/iliyamo/tour-booking-api/internal/middleware"
	"github.com/iliyamo/tour-booking-api/internal/model"
	"github.com/iliyamo/tour-booking-api/internal/token"
)

// Deps carries everything route registration needs.
type Deps struct {
	DB     *sql.DB
	Redis  *redis.Client
	Issuer token.Issuer
	Users  middleware.UserResolver

	Auth     *handler.AuthHandler
	Bookings *handler.BookingHandler

	UserResource    *handler.Resource[model.User]
	TourResource    *handler.Resource[model.Tour]
	ReviewResource  *handler.Resource[model.Review]
	BookingResource *handler.Resource[model.Booking]

	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
}

// Register mounts every route on the Echo instance.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))

	// The Stripe webhook authenticates by signature, not by session, and
	// must see the raw request body.
	e.POST("/api/v1/webhook-checkout", d.Bookings.Webhook)

	api := e.Group("/api/v1")

	protect := middleware.Protect(d.Issuer, d.Users)
	limiter := middleware.RateLimit(d.RateLimit, d.Redis)
	cache := middleware.ResponseCache(d.Cache, d.Redis)

	// Users: credential endpoints sit behind the rate limiter; the admin
	// collection requires the admin role.
	users := api.Group("/users")
	users.POST("/signup", d.Auth.Signup, limiter)
	users.POST("/login", d.Auth.Login, limiter)
	users.DELETE("/logout", d.Auth.Logout)
	users.POST("/forgotPassword", d.Auth.ForgotPassword, limiter)
	users.PATCH("/resetPassword/:token", d.Auth.ResetPassword, limiter)

	me := users.Group("", protect)
	me.GET("/me", d.Auth.GetMe)
	me.PATCH("/updateMyPassword", d.Auth.UpdateMyPassword)
	me.PATCH("/updateMe", d.Auth.UpdateMe)
	me.DELETE("/deleteMe", d.Auth.DeleteMe)

	adminUsers := users.Group("", protect, middleware.RestrictTo(model.RoleAdmin))
	adminUsers.GET("", d.UserResource.List)
	adminUsers.POST("", d.UserResource.Create)
	adminUsers.GET("/:id", d.UserResource.GetOne)
	adminUsers.PATCH("/:id", d.UserResource.UpdateOne)
	adminUsers.DELETE("/:id", d.UserResource.DeleteOne)

	// Tours: public reads are cached; mutations are for staff.
	tours := api.Group("/tours")
	tours.GET("", d.TourResource.List, cache)
	tours.GET("/:id", d.TourResource.GetOne, cache)

	staffTours := tours.Group("", protect, middleware.RestrictTo(model.RoleAdmin, model.RoleLeadGuide))
	staffTours.POST("", d.TourResource.Create)
	staffTours.PATCH("/:id", d.TourResource.UpdateOne)
	staffTours.DELETE("/:id", d.TourResource.DeleteOne)

	// Reviews, flat and nested under a tour.
	tours.GET("/:tourId/reviews", d.ReviewResource.List)
	tours.POST("/:tourId/reviews", d.ReviewResource.Create, protect, middleware.RestrictTo(model.RoleUser))

	reviews := api.Group("/reviews")
	reviews.GET("", d.ReviewResource.List)
	reviews.GET("/:id", d.ReviewResource.GetOne)
	reviews.POST("", d.ReviewResource.Create, protect, middleware.RestrictTo(model.RoleUser))
	reviews.PATCH("/:id", d.ReviewResource.UpdateOne, protect, middleware.RestrictTo(model.RoleUser, model.RoleAdmin))
	reviews.DELETE("/:id", d.ReviewResource.DeleteOne, protect, middleware.RestrictTo(model.RoleUser, model.RoleAdmin))

	// Bookings: checkout and self-service need a session; the collection is
	// admin only.
	bookings := api.Group("/bookings", protect)
	bookings.POST("/checkout-session/:tourId", d.Bookings.CheckoutSession)
	bookings.GET("/my-bookings", d.Bookings.MyBookings)
	bookings.GET("/verify/:txRef", d.Bookings.VerifyChapa)

	adminBookings := bookings.Group("", middleware.RestrictTo(model.RoleAdmin))
	adminBookings.GET("", d.BookingResource.List)
	adminBookings.POST("", d.BookingResource.Create)
	adminBookings.GET("/:id", d.BookingResource.GetOne)
	adminBookings.PATCH("/:id", d.BookingResource.UpdateOne)
	adminBookings.DELETE("/:id", d.BookingResource.DeleteOne)
}
