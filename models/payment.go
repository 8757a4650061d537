package models

import "time"

type PaymentOutcome string

const (
	PaymentPending   PaymentOutcome = "pending"
	PaymentSucceeded PaymentOutcome = "succeeded"
	PaymentFailed    PaymentOutcome = "failed"
	PaymentCancelled PaymentOutcome = "cancelled"
)

// PaymentAttempt is one try at capturing payment for a booking.
type PaymentAttempt struct {
	ID              string         `json:"id"`
	BookingID       string         `json:"bookingId"`
	AttemptNumber   int            `json:"attemptNumber"`
	ClientSecret    string         `json:"clientSecret,omitempty"`
	PaymentIntentID string         `json:"paymentIntentId,omitempty"`
	Outcome         PaymentOutcome `json:"outcome"`
	ErrorKind       string         `json:"errorKind,omitempty"`
	ErrorCode       string         `json:"errorCode,omitempty"`
	StartedAt       time.Time      `json:"startedAt"`
	FinishedAt      *time.Time     `json:"finishedAt,omitempty"`
}

// PaymentIntent is what the payment backend issues for a single confirmation.
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
	CustomerID   string `json:"customerId,omitempty"`
	EphemeralKey string `json:"ephemeralKey,omitempty"`
	AmountCents  int64  `json:"amountCents"`
	Currency     string `json:"currency"`
}

// BillingContext carries who pays and with what.
// Web confirmations use PaymentMethodID (stored or card-element derived) or CardToken;
// mobile confirmations use CustomerID and EphemeralKey to initialise the payment sheet.
type BillingContext struct {
	BookingID       string   `json:"bookingId"`
	OwnerID         string   `json:"ownerId"`
	Platform        Platform `json:"platform"`
	CustomerID      string   `json:"customerId,omitempty"`
	EphemeralKey    string   `json:"ephemeralKey,omitempty"`
	PaymentMethodID string   `json:"paymentMethodId,omitempty"`
	CardToken       string   `json:"cardToken,omitempty"`
}
