package queue

// Event kinds carried on the notification queue.
const (
	KindWelcome          = "welcome"
	KindPasswordReset    = "password_reset"
	KindBookingConfirmed = "booking_confirmed"
)

// NotificationEvent is the payload published for every outbound email.
// Fields beyond Kind and Email are filled per kind: ResetURL for password
// resets, TourName and Price for booking confirmations.
type NotificationEvent struct {
	Kind     string  `json:"kind"`
	Email    string  `json:"email"`
	Name     string  `json:"name"`
	ResetURL string  `json:"reset_url,omitempty"`
	TourName string  `json:"tour_name,omitempty"`
	Price    float64 `json:"price,omitempty"`
}
