package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking-api/internal/httperr"
	"github.com/iliyamo/tour-booking-api/internal/middleware"
	"github.com/iliyamo/tour-booking-api/internal/model"
	"github.com/iliyamo/tour-booking-api/internal/payment"
	"github.com/iliyamo/tour-booking-api/internal/queue"
	"github.com/iliyamo/tour-booking-api/internal/repository"
)

// BookingStore is the booking storage used by the checkout flows.
type BookingStore interface {
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	InsertPaid(ctx context.Context, tourID, userID uint64, price float64, provider string) (model.Booking, error)
	InsertPending(ctx context.Context, tourID, userID uint64, price float64, provider, txRef string) (model.Booking, error)
	MarkPaidByTxRef(ctx context.Context, txRef string) (model.Booking, error)
}

// TourFinder resolves a tour for checkout pricing.
type TourFinder interface {
	FindByID(ctx context.Context, id uint64) (model.Tour, error)
}

// EmailUserFinder resolves a user from the email on a payment session.
type EmailUserFinder interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
}

// BookingHandler bridges tours to the payment providers.
type BookingHandler struct {
	bookings BookingStore
	tours    TourFinder
	users    EmailUserFinder
	stripe   *payment.StripeClient
	chapa    *payment.ChapaClient
	notifier Notifier

	frontendURL string
}

func NewBookingHandler(
	bookings BookingStore,
	tours TourFinder,
	users EmailUserFinder,
	stripe *payment.StripeClient,
	chapa *payment.ChapaClient,
	notifier Notifier,
	frontendURL string,
) *BookingHandler {
	return &BookingHandler{
		bookings:    bookings,
		tours:       tours,
		users:       users,
		stripe:      stripe,
		chapa:       chapa,
		notifier:    notifier,
		frontendURL: frontendURL,
	}
}

// CheckoutSession opens a payment checkout for a tour.  Stripe is the
// default; `?provider=chapa` switches providers.  With Stripe the booking is
// created later by the webhook; with Chapa an unpaid booking is recorded up
// front and promoted by the verify endpoint.
func (h *BookingHandler) CheckoutSession(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return httperr.Unauthorized("You are not logged in! Please log in to get access.")
	}
	tourID, err := paramID(c, "tourId")
	if err != nil {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	tour, err := h.tours.FindByID(ctx, tourID)
	if errors.Is(err, repository.ErrNotFound) {
		return httperr.NotFound("No document found with that ID")
	}
	if err != nil {
		return err
	}

	if c.QueryParam("provider") == model.ProviderChapa {
		return h.chapaCheckout(ctx, c, tour, u)
	}
	return h.stripeCheckout(ctx, c, tour, u)
}

func (h *BookingHandler) stripeCheckout(ctx context.Context, c echo.Context, tour model.Tour, u model.User) error {
	if h.stripe == nil {
		return httperr.New(http.StatusServiceUnavailable, "card payments are not configured")
	}
	sess, err := h.stripe.CreateCheckoutSession(ctx, payment.CheckoutParams{
		TourID:        tour.ID,
		TourName:      tour.Name,
		TourSummary:   tour.Summary,
		PriceUSD:      tour.Price,
		CustomerEmail: u.Email,
		SuccessURL:    h.frontendURL + "/my-bookings?alert=booking",
		CancelURL:     h.frontendURL + "/tours/" + strconv.FormatUint(tour.ID, 10),
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"session": sess})
}

func (h *BookingHandler) chapaCheckout(ctx context.Context, c echo.Context, tour model.Tour, u model.User) error {
	if h.chapa == nil {
		return httperr.New(http.StatusServiceUnavailable, "chapa payments are not configured")
	}
	txRef := uuid.NewString()
	checkoutURL, err := h.chapa.Initialize(ctx, payment.ChapaInit{
		Amount:    tour.Price,
		Email:     u.Email,
		FirstName: u.Name,
		TxRef:     txRef,
		ReturnURL: h.frontendURL + "/bookings/verify/" + txRef,
	})
	if err != nil {
		return err
	}
	if _, err := h.bookings.InsertPending(ctx, tour.ID, u.ID, tour.Price, model.ProviderChapa, txRef); err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"checkoutUrl": checkoutURL, "txRef": txRef})
}

// Webhook handles Stripe checkout completion.  The signature gate runs
// before anything touches storage; a bad signature means no booking.
func (h *BookingHandler) Webhook(c echo.Context) error {
	if h.stripe == nil {
		return httperr.New(http.StatusServiceUnavailable, "card payments are not configured")
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return httperr.BadRequest("unreadable webhook body")
	}

	ev, err := h.stripe.ConstructEvent(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		return httperr.BadRequest("Webhook signature verification failed")
	}
	if ev.Type != "checkout.session.completed" {
		return respondMessage(c, http.StatusOK, "ignored")
	}

	var sess payment.CheckoutSession
	if err := json.Unmarshal(ev.Data.Object, &sess); err != nil {
		return httperr.BadRequest("malformed webhook payload")
	}
	tourID, err := strconv.ParseUint(sess.ClientReferenceID, 10, 64)
	if err != nil {
		return httperr.BadRequest("malformed webhook payload")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.users.GetByEmail(ctx, sess.CustomerEmail)
	if errors.Is(err, repository.ErrNotFound) {
		return httperr.BadRequest("no user matches the checkout session")
	}
	if err != nil {
		return err
	}
	tour, err := h.tours.FindByID(ctx, tourID)
	if errors.Is(err, repository.ErrNotFound) {
		return httperr.BadRequest("no tour matches the checkout session")
	}
	if err != nil {
		return err
	}

	price := float64(sess.AmountTotal) / 100
	if price == 0 {
		price = tour.Price
	}
	if _, err := h.bookings.InsertPaid(ctx, tour.ID, u.ID, price, model.ProviderStripe); err != nil {
		return err
	}
	if err := h.notifier.Publish(ctx, queue.NotificationEvent{
		Kind:     queue.KindBookingConfirmed,
		Email:    u.Email,
		Name:     u.Name,
		TourName: tour.Name,
		Price:    price,
	}); err != nil {
		c.Logger().Errorf("publish booking event: %v", err)
	}
	return respondMessage(c, http.StatusOK, "received")
}

// VerifyChapa confirms a pending Chapa booking by its transaction reference.
func (h *BookingHandler) VerifyChapa(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return httperr.Unauthorized("You are not logged in! Please log in to get access.")
	}
	txRef := c.Param("txRef")
	if txRef == "" {
		return httperr.BadRequest("missing transaction reference")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	if h.chapa == nil {
		return httperr.New(http.StatusServiceUnavailable, "chapa payments are not configured")
	}
	okPaid, err := h.chapa.Verify(ctx, txRef)
	if err != nil {
		return err
	}
	if !okPaid {
		return httperr.BadRequest("payment not completed")
	}

	booking, err := h.bookings.MarkPaidByTxRef(ctx, txRef)
	if errors.Is(err, repository.ErrNotFound) {
		return httperr.NotFound("No document found with that ID")
	}
	if err != nil {
		return err
	}

	ctxTour, cancelTour := reqCtx(c)
	defer cancelTour()
	tour, err := h.tours.FindByID(ctxTour, booking.TourID)
	if err == nil {
		if pubErr := h.notifier.Publish(ctxTour, queue.NotificationEvent{
			Kind:     queue.KindBookingConfirmed,
			Email:    u.Email,
			Name:     u.Name,
			TourName: tour.Name,
			Price:    booking.Price,
		}); pubErr != nil {
			c.Logger().Errorf("publish booking event: %v", pubErr)
		}
	}
	return respond(c, http.StatusOK, echo.Map{"booking": booking})
}

// MyBookings lists the logged-in user's bookings, newest first.
func (h *BookingHandler) MyBookings(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return httperr.Unauthorized("You are not logged in! Please log in to get access.")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	bookings, err := h.bookings.ListByUser(ctx, u.ID)
	if err != nil {
		return err
	}
	return respondList(c, len(bookings), bookings)
}

var bookingQueryFields = map[string]string{
	"id":        "id",
	"tour":      "tour_id",
	"user":      "user_id",
	"price":     "price",
	"paid":      "paid",
	"provider":  "provider",
	"createdAt": "created_at",
}

var bookingWriteAllowed = []string{"tour", "user", "price", "paid", "provider"}

// NewBookingResource wires the admin CRUD handlers for bookings.
func NewBookingResource(store Store[model.Booking]) *Resource[model.Booking] {
	return NewResource(store, bookingWriteAllowed, bookingQueryFields)
}
