package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"AeroSentry/internal/biz"
	"AeroSentry/internal/data"
)

// WalletReply is the wallet balance view.
type WalletReply struct {
	UserID   int64   `json:"user_id"`
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
}

// TransactionsReply is a page of wallet transactions.
type TransactionsReply struct {
	Transactions []*data.WalletTransaction `json:"transactions"`
	Total        int32                     `json:"total"`
	Page         int32                     `json:"page"`
	PageSize     int32                     `json:"page_size"`
}

// WalletService serves passenger wallet balances and history.
type WalletService struct {
	wallet *biz.WalletUseCase
	logger *log.Helper
}

// NewWalletService creates the wallet query service.
func NewWalletService(wallet *biz.WalletUseCase, logger log.Logger) *WalletService {
	return &WalletService{
		wallet: wallet,
		logger: log.NewHelper(logger),
	}
}

// GetBalance returns a user's wallet, creating it on first access.
func (s *WalletService) GetBalance(ctx context.Context, userID int64) (*WalletReply, error) {
	wallet, err := s.wallet.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &WalletReply{
		UserID:   wallet.UserID,
		Balance:  wallet.Balance,
		Currency: wallet.Currency,
	}, nil
}

// ListTransactions returns a page of a user's wallet history.
func (s *WalletService) ListTransactions(ctx context.Context, userID int64, page, pageSize int32) (*TransactionsReply, error) {
	txns, total, err := s.wallet.ListTransactions(ctx, userID, page, pageSize)
	if err != nil {
		return nil, err
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return &TransactionsReply{
		Transactions: txns,
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
	}, nil
}
