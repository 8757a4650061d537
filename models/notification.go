package models

import "time"

type NotificationKind string

const (
	NotifyBookingAccepted NotificationKind = "booking_accepted"
	NotifyBookingRejected NotificationKind = "booking_rejected"
	NotifyBookingExpired  NotificationKind = "booking_expired"
	NotifyBookingPaid     NotificationKind = "booking_paid"
	NotifyCaregiverOffer  NotificationKind = "caregiver_offer"
	NotifyPaymentSheet    NotificationKind = "payment_sheet"
)

type Notification struct {
	ID        string            `json:"id"`
	Recipient string            `json:"recipient"`
	Kind      NotificationKind  `json:"kind"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data"`
	CreatedAt time.Time         `json:"createdAt"`
}
