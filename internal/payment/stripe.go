package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Default tolerance for webhook timestamps.  Events older than this are
// treated as replayed.
const signatureTolerance = 5 * time.Minute

var (
	ErrBadSignature = errors.New("webhook signature verification failed")
)

// StripeClient talks to the Stripe REST API with form-encoded requests.
type StripeClient struct {
	Key           string
	WebhookSecret string
	BaseURL       string
	HTTP          *http.Client

	// now is swappable for signature tests.
	now func() time.Time
}

func NewStripeClient(key, webhookSecret string) *StripeClient {
	return &StripeClient{
		Key:           key,
		WebhookSecret: webhookSecret,
		BaseURL:       "https://api.stripe.com",
		HTTP:          &http.Client{Timeout: 10 * time.Second},
		now:           time.Now,
	}
}

// CheckoutSession is the subset of the Stripe session object used here,
// both from session creation and from the webhook payload.
type CheckoutSession struct {
	ID                string `json:"id"`
	URL               string `json:"url"`
	ClientReferenceID string `json:"client_reference_id"`
	CustomerEmail     string `json:"customer_email"`
	AmountTotal       int64  `json:"amount_total"`
}

// CheckoutParams describes one tour purchase.
type CheckoutParams struct {
	TourID        uint64
	TourName      string
	TourSummary   string
	PriceUSD      float64
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// CreateCheckoutSession opens a hosted card checkout for a single tour.
func (s *StripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	form.Set("customer_email", p.CustomerEmail)
	form.Set("client_reference_id", strconv.FormatUint(p.TourID, 10))
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", "usd")
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(int64(math.Round(p.PriceUSD*100)), 10))
	form.Set("line_items[0][price_data][product_data][name]", p.TourName+" Tour")
	form.Set("line_items[0][price_data][product_data][description]", p.TourSummary)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.BaseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return CheckoutSession{}, err
	}
	req.Header.Set("Authorization", "Bearer "+s.Key)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return CheckoutSession{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return CheckoutSession{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return CheckoutSession{}, fmt.Errorf("stripe checkout session: status %d: %s", resp.StatusCode, body)
	}

	var sess CheckoutSession
	if err := json.Unmarshal(body, &sess); err != nil {
		return CheckoutSession{}, err
	}
	return sess, nil
}

// Event is a verified webhook event.
type Event struct {
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ConstructEvent verifies the Stripe-Signature header against the raw body
// and returns the decoded event.  The signed payload is "<t>.<body>" and the
// expected digest is HMAC-SHA256 under the webhook secret.
func (s *StripeClient) ConstructEvent(payload []byte, sigHeader string) (Event, error) {
	ts, sigs, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return Event{}, err
	}

	at := time.Unix(ts, 0)
	nowFn := s.now
	if nowFn == nil {
		nowFn = time.Now
	}
	if d := nowFn().Sub(at); d > signatureTolerance || d < -signatureTolerance {
		return Event{}, ErrBadSignature
	}

	mac := hmac.New(sha256.New, []byte(s.WebhookSecret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	ok := false
	for _, sig := range sigs {
		raw, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(raw, expected) {
			ok = true
			break
		}
	}
	if !ok {
		return Event{}, ErrBadSignature
	}

	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("decode webhook event: %w", err)
	}
	return ev, nil
}

// parseSignatureHeader splits "t=<unix>,v1=<hex>[,v1=<hex>...]".
func parseSignatureHeader(header string) (int64, []string, error) {
	var (
		ts   int64
		sigs []string
	)
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, nil, ErrBadSignature
			}
			ts = n
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return 0, nil, ErrBadSignature
	}
	return ts, sigs, nil
}
