package biz

import (
	"context"

	"AeroSentry/internal/data"
)

// WalletRepo defines the interface for wallet persistence.
// Following Kratos v2 DDD architecture, interfaces are defined in biz layer.
// Implementation is in data layer (data.WalletRepo).
type WalletRepo interface {
	// GetOrCreateWallet returns the user's wallet, creating one on first use.
	GetOrCreateWallet(ctx context.Context, userID int64) (*data.Wallet, error)
	// Credit adds funds keyed by an idempotency reference; a duplicate
	// reference reports credited=false with no error.
	Credit(ctx context.Context, userID int64, amount float64, txnType, reference, description string) (credited bool, err error)
	// GetBalance returns the user's wallet.
	GetBalance(ctx context.Context, userID int64) (*data.Wallet, error)
	// ListTransactions returns a page of the wallet's transactions.
	ListTransactions(ctx context.Context, userID int64, page, pageSize int32) ([]*data.WalletTransaction, int32, error)
}
