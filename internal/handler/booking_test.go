package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking-api/internal/httperr"
	"github.com/iliyamo/tour-booking-api/internal/model"
	"github.com/iliyamo/tour-booking-api/internal/payment"
	"github.com/iliyamo/tour-booking-api/internal/repository"
)

type fakeBookings struct {
	paid    []model.Booking
	pending []model.Booking
}

func (f *fakeBookings) ListByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range append(f.paid, f.pending...) {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBookings) InsertPaid(_ context.Context, tourID, userID uint64, price float64, provider string) (model.Booking, error) {
	b := model.Booking{ID: uint64(len(f.paid) + 1), TourID: tourID, UserID: userID, Price: price, Paid: true, Provider: provider}
	f.paid = append(f.paid, b)
	return b, nil
}

func (f *fakeBookings) InsertPending(_ context.Context, tourID, userID uint64, price float64, provider, txRef string) (model.Booking, error) {
	b := model.Booking{ID: uint64(len(f.pending) + 1), TourID: tourID, UserID: userID, Price: price, Provider: provider, TxRef: txRef}
	f.pending = append(f.pending, b)
	return b, nil
}

func (f *fakeBookings) MarkPaidByTxRef(_ context.Context, txRef string) (model.Booking, error) {
	for i, b := range f.pending {
		if b.TxRef == txRef {
			f.pending[i].Paid = true
			return f.pending[i], nil
		}
	}
	return model.Booking{}, repository.ErrNotFound
}

type fakeTours struct{ tours map[uint64]model.Tour }

func (f *fakeTours) FindByID(_ context.Context, id uint64) (model.Tour, error) {
	tour, ok := f.tours[id]
	if !ok {
		return model.Tour{}, repository.ErrNotFound
	}
	return tour, nil
}

type fakeEmailUsers struct{ users map[string]model.User }

func (f *fakeEmailUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	u, ok := f.users[email]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

const webhookTestSecret = "whsec_handler_test"

func stripeSignature(secret string, at time.Time, payload []byte) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func webhookHandler(bookings *fakeBookings) *BookingHandler {
	stripe := payment.NewStripeClient("sk_test", webhookTestSecret)
	tours := &fakeTours{tours: map[uint64]model.Tour{9: {ID: 9, Name: "Forest Hiker", Price: 497}}}
	users := &fakeEmailUsers{users: map[string]model.User{"ada@example.com": {ID: 7, Name: "Ada", Email: "ada@example.com"}}}
	return NewBookingHandler(bookings, tours, users, stripe, nil, &fakeNotifier{}, "http://localhost:3000")
}

func postWebhook(h *BookingHandler, payload, signature string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook-checkout", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	return rec, h.Webhook(e.NewContext(req, rec))
}

const completedSession = `{"type":"checkout.session.completed","data":{"object":{"client_reference_id":"9","customer_email":"ada@example.com","amount_total":49700}}}`

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	bookings := &fakeBookings{}
	h := webhookHandler(bookings)

	_, err := postWebhook(h, completedSession,
		stripeSignature("whsec_wrong", time.Now(), []byte(completedSession)))
	var he *httperr.Error
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if len(bookings.paid) != 0 {
		t.Fatal("booking inserted despite invalid signature")
	}
}

func TestWebhookInsertsPaidBooking(t *testing.T) {
	bookings := &fakeBookings{}
	h := webhookHandler(bookings)

	rec, err := postWebhook(h, completedSession,
		stripeSignature(webhookTestSecret, time.Now(), []byte(completedSession)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(bookings.paid) != 1 {
		t.Fatalf("expected one paid booking, got %d", len(bookings.paid))
	}
	b := bookings.paid[0]
	if b.TourID != 9 || b.UserID != 7 || !b.Paid || b.Provider != model.ProviderStripe {
		t.Fatalf("unexpected booking: %+v", b)
	}
	if b.Price != 497 {
		t.Fatalf("expected price from amount_total, got %v", b.Price)
	}
}

func TestWebhookRejectsUnresolvableSession(t *testing.T) {
	payloads := []struct {
		name string
		body string
	}{
		{"unknown email", `{"type":"checkout.session.completed","data":{"object":{"client_reference_id":"9","customer_email":"ghost@example.com","amount_total":49700}}}`},
		{"unknown tour", `{"type":"checkout.session.completed","data":{"object":{"client_reference_id":"404","customer_email":"ada@example.com","amount_total":49700}}}`},
	}
	for _, tc := range payloads {
		bookings := &fakeBookings{}
		h := webhookHandler(bookings)

		_, err := postWebhook(h, tc.body,
			stripeSignature(webhookTestSecret, time.Now(), []byte(tc.body)))
		var he *httperr.Error
		if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %v", tc.name, err)
		}
		if len(bookings.paid) != 0 {
			t.Fatalf("%s: booking inserted despite unresolvable session", tc.name)
		}
	}
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	bookings := &fakeBookings{}
	h := webhookHandler(bookings)

	payload := `{"type":"payment_intent.created","data":{"object":{}}}`
	rec, err := postWebhook(h, payload,
		stripeSignature(webhookTestSecret, time.Now(), []byte(payload)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK || len(bookings.paid) != 0 {
		t.Fatalf("non-checkout event should be acked without effect: %d bookings", len(bookings.paid))
	}
}

func TestMyBookingsListsOwnOnly(t *testing.T) {
	bookings := &fakeBookings{}
	_, _ = bookings.InsertPaid(context.Background(), 9, 7, 497, model.ProviderStripe)
	_, _ = bookings.InsertPaid(context.Background(), 9, 8, 497, model.ProviderStripe)
	h := webhookHandler(bookings)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/my-bookings", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user", model.User{ID: 7, Email: "ada@example.com"})
	if err := h.MyBookings(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"results":1`) {
		t.Fatalf("expected exactly the caller's bookings: %s", rec.Body.String())
	}
}
