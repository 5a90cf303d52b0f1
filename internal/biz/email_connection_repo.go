package biz

import (
	"context"
	"time"

	"AeroSentry/internal/data"
)

// EmailConnectionRepo defines the interface for stored email connections.
// Implementation is in data layer (data.EmailConnectionRepo).
type EmailConnectionRepo interface {
	// SaveConnection upserts a connection, encrypting the access token.
	SaveConnection(ctx context.Context, conn *data.EmailConnection, accessToken string) error
	// GetAccessToken decrypts the stored access token.
	GetAccessToken(ctx context.Context, id int64) (string, error)
	// ListActiveConnections returns connections eligible for syncing.
	ListActiveConnections(ctx context.Context) ([]*data.EmailConnection, error)
	// UpdateLastSync records a completed sync pass.
	UpdateLastSync(ctx context.Context, id int64, syncedAt time.Time) error
}
