package notification

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"pawbook/models"
	"pawbook/services/payment"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// NotificationService defines the pushes the booking workflow sends.
type NotificationService interface {
	NotifyOwner(ctx context.Context, ownerID string, kind models.NotificationKind, req models.BookingRequest) error
	OfferToCaregiver(ctx context.Context, caregiver models.CaregiverOption, req models.BookingRequest) error
	PresentPaymentSheet(ctx context.Context, sheet payment.SheetRequest) error
}

// Messenger is the FCM send call; *messaging.Client satisfies it.
type Messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// OwnerLookup finds an owner's push token.
type OwnerLookup interface {
	GetOwner(ctx context.Context, ownerID string) (*models.Owner, error)
}

// DefaultNotificationService is the production implementation.
type DefaultNotificationService struct {
	owners    OwnerLookup
	messenger Messenger
	logger    *zap.Logger
}

func NewDefaultNotificationService(owners OwnerLookup, messenger Messenger, logger *zap.Logger) (*DefaultNotificationService, error) {
	if owners == nil || messenger == nil {
		return nil, fmt.Errorf("notification service initialization error: owner lookup or messenger is nil")
	}
	return &DefaultNotificationService{
		owners:    owners,
		messenger: messenger,
		logger:    logger,
	}, nil
}

// NotifyOwner tells the owner their booking changed state.
func (s *DefaultNotificationService) NotifyOwner(ctx context.Context, ownerID string, kind models.NotificationKind, req models.BookingRequest) error {
	title, body, err := ownerMessage(kind, req)
	if err != nil {
		return err
	}
	return s.sendToOwner(ctx, ownerID, title, body, map[string]string{
		"type":      string(kind),
		"role":      "owner",
		"bookingId": req.ID,
		"status":    string(req.Status),
	})
}

// OfferToCaregiver pushes a new booking offer to a caregiver's device.
func (s *DefaultNotificationService) OfferToCaregiver(ctx context.Context, caregiver models.CaregiverOption, req models.BookingRequest) error {
	if caregiver.FCMToken == "" {
		return fmt.Errorf("OfferToCaregiver: caregiver %s has no FCM token", caregiver.ID)
	}

	kind := "direct"
	if req.IsOpenShift {
		kind = "open shift"
	}
	title := fmt.Sprintf("New %s request", serviceLabel(req.ServiceType))
	body := fmt.Sprintf("A %s booking for %d pet%s starting %s is waiting for your answer.",
		kind, len(req.Pets), plural(len(req.Pets)), req.StartDate.Format("Mon Jan 2 15:04"))

	msg := &messaging.Message{
		Token: caregiver.FCMToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: map[string]string{
			"type":        string(models.NotifyCaregiverOffer),
			"role":        "caregiver",
			"bookingId":   req.ID,
			"serviceType": string(req.ServiceType),
			"openShift":   strconv.FormatBool(req.IsOpenShift),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "high_priority",
				Sound:     "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":  "10",
				"apns-push-type": "alert",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	if _, err := s.messenger.Send(ctx, msg); err != nil {
		return fmt.Errorf("OfferToCaregiver: failed to send FCM message: %w", err)
	}
	return nil
}

// PresentPaymentSheet sends the data-only push the mobile app uses to open the payment sheet.
func (s *DefaultNotificationService) PresentPaymentSheet(ctx context.Context, sheet payment.SheetRequest) error {
	owner, err := s.owners.GetOwner(ctx, sheet.OwnerID)
	if err != nil {
		return fmt.Errorf("PresentPaymentSheet: could not find owner %s: %w", sheet.OwnerID, err)
	}
	if owner.FCMToken == "" {
		return fmt.Errorf("PresentPaymentSheet: owner %s has no FCM token", sheet.OwnerID)
	}

	msg := &messaging.Message{
		Token: owner.FCMToken,
		Data: map[string]string{
			"type":            string(models.NotifyPaymentSheet),
			"role":            "owner",
			"bookingId":       sheet.BookingID,
			"paymentIntentId": sheet.PaymentIntentID,
			"clientSecret":    sheet.ClientSecret,
			"customerId":      sheet.CustomerID,
			"ephemeralKey":    sheet.EphemeralKey,
		},
		Android: &messaging.AndroidConfig{Priority: "high"},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":  "10",
				"apns-push-type": "background",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{ContentAvailable: true},
			},
		},
	}
	if _, err := s.messenger.Send(ctx, msg); err != nil {
		return fmt.Errorf("PresentPaymentSheet: failed to send FCM message: %w", err)
	}
	return nil
}

func (s *DefaultNotificationService) sendToOwner(ctx context.Context, ownerID, title, body string, data map[string]string) error {
	owner, err := s.owners.GetOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("sendToOwner: could not find owner %s: %w", ownerID, err)
	}
	if owner.FCMToken == "" {
		return fmt.Errorf("sendToOwner: owner %s has no FCM token", ownerID)
	}

	msg := &messaging.Message{
		Token: owner.FCMToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}
	response, err := s.messenger.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendToOwner: failed to send FCM message: %w", err)
	}
	s.logger.Debug("owner notification sent", zap.String("owner_id", ownerID), zap.String("message_id", response))
	return nil
}

func ownerMessage(kind models.NotificationKind, req models.BookingRequest) (string, string, error) {
	service := serviceLabel(req.ServiceType)
	switch kind {
	case models.NotifyBookingAccepted:
		return "Your booking was accepted 🐾",
			fmt.Sprintf("A caregiver accepted your %s booking. We're finishing up payment.", service), nil
	case models.NotifyBookingRejected:
		return "Booking not accepted",
			fmt.Sprintf("Your %s booking was declined. You can pick another caregiver or post an open shift.", service), nil
	case models.NotifyBookingExpired:
		return "No caregiver found",
			fmt.Sprintf("Nobody picked up your %s open shift in time. Please start a new booking.", service), nil
	case models.NotifyBookingPaid:
		return "Booking confirmed ✅",
			fmt.Sprintf("Payment received. Your %s booking on %s is all set.", service, req.StartDate.Format("Mon Jan 2")), nil
	default:
		return "", "", fmt.Errorf("unsupported owner notification kind %q", kind)
	}
}

func serviceLabel(s models.ServiceType) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// plural returns "s" if n is not 1, otherwise returns an empty string.
func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
