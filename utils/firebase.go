package utils

import (
	"context"
	"fmt"

	"pawbook/config"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// FCMClient delivers caregiver offers, owner updates and payment sheet pushes.
var FCMClient *messaging.Client

// NewMessagingClient builds an FCM client from a service account file.
func NewMessagingClient(ctx context.Context, credentialsPath string) (*messaging.Client, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	return client, nil
}

// FirebaseInit sets FCMClient or exits; push delivery is required to match caregivers.
func FirebaseInit() {
	client, err := NewMessagingClient(context.Background(), config.AppConfig.FirebaseCredentialsPath)
	if err != nil {
		GetLogger().Fatal("firebase init failed", zap.Error(err))
	}
	FCMClient = client
}
