package data

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	pkgerrors "AeroSentry/pkg/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Wallet transaction type constants.
const (
	TxnTypeCompensation = "COMPENSATION"
	TxnTypeAdjustment   = "ADJUSTMENT"
)

// Wallet is the GORM model for wallets table. One wallet per user.
type Wallet struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	UserID    int64     `gorm:"column:user_id;uniqueIndex;not null"`
	Balance   float64   `gorm:"column:balance;default:0;not null"`
	Currency  string    `gorm:"column:currency;size:3;default:'USD';not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Wallet) TableName() string {
	return "wallets"
}

// WalletTransaction is the GORM model for wallet_transactions table.
// Reference carries the idempotency key; the unique index makes a repeated
// credit for the same reference a no-op.
type WalletTransaction struct {
	ID          int64     `gorm:"primaryKey;column:id"`
	TxnID       string    `gorm:"column:txn_id;size:40;uniqueIndex;not null"`
	WalletID    int64     `gorm:"column:wallet_id;not null;index"`
	Amount      float64   `gorm:"column:amount;not null"`
	Type        string    `gorm:"column:type;size:20;not null"`
	Reference   string    `gorm:"column:reference;size:64;uniqueIndex;not null"`
	Description string    `gorm:"column:description;type:text"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}

// NewTxnID generates a wallet transaction identifier.
func NewTxnID() string {
	return "txn_" + uuid.NewString()
}

// WalletRepo implements biz.WalletRepo interface.
// Following Kratos v2 DDD architecture, interface is defined in biz layer.
type WalletRepo struct {
	db     *gorm.DB
	cache  CacheClient
	logger *log.Helper
}

// NewWalletRepo creates a new wallet repository.
func NewWalletRepo(data *Data, db *gorm.DB, logger log.Logger) *WalletRepo {
	return &WalletRepo{
		db:     db,
		cache:  data.GetCache(),
		logger: log.NewHelper(logger),
	}
}

// GetOrCreateWallet returns the user's wallet, creating an empty USD wallet
// on first use. Concurrent first use is settled by the user_id unique index.
func (r *WalletRepo) GetOrCreateWallet(ctx context.Context, userID int64) (*Wallet, error) {
	var wallet Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err == nil {
		return &wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		r.logger.Errorf("failed to get wallet: %v", err)
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	wallet = Wallet{UserID: userID, Balance: 0, Currency: "USD"}
	if err := r.db.WithContext(ctx).Create(&wallet).Error; err != nil {
		dbErr := pkgerrors.ClassifyDBError(err)
		if dbErr.Type == pkgerrors.ErrorTypeDuplicateKey {
			// Lost the race, another request created it first
			if findErr := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; findErr != nil {
				return nil, fmt.Errorf("failed to load wallet after create race: %w", findErr)
			}
			return &wallet, nil
		}
		r.logger.Errorw("failed to create wallet", "user_id", userID, "error", dbErr.Error())
		return nil, dbErr
	}

	r.logger.Infow("wallet created", "id", wallet.ID, "user_id", userID)
	return &wallet, nil
}

// Credit adds amount to the user's wallet inside a transaction, keyed by the
// idempotency reference. A duplicate reference reports credited=false with no
// error and leaves the balance untouched.
func (r *WalletRepo) Credit(ctx context.Context, userID int64, amount float64, txnType, reference, description string) (credited bool, err error) {
	if amount <= 0 {
		return false, fmt.Errorf("credit amount must be positive: %f", amount)
	}

	wallet, err := r.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return false, err
	}

	txn := &WalletTransaction{
		TxnID:       NewTxnID(),
		WalletID:    wallet.ID,
		Amount:      amount,
		Type:        txnType,
		Reference:   reference,
		Description: description,
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(txn).Error; err != nil {
			return err
		}
		return tx.Model(&Wallet{}).
			Where("id = ?", wallet.ID).
			Updates(map[string]interface{}{
				"balance":    gorm.Expr("balance + ?", amount),
				"updated_at": time.Now(),
			}).Error
	})
	if err != nil {
		dbErr := pkgerrors.ClassifyDBError(err)
		if dbErr.Type == pkgerrors.ErrorTypeDuplicateKey {
			r.logger.Infow("wallet credit already applied",
				"user_id", userID,
				"reference", reference)
			return false, nil
		}
		r.logger.Errorw("failed to credit wallet",
			"user_id", userID,
			"reference", reference,
			"error", dbErr.Error())
		return false, dbErr
	}

	r.invalidateWalletCache(ctx, userID)

	r.logger.Infow("wallet credited",
		"user_id", userID,
		"amount", amount,
		"reference", reference,
		"txn_id", txn.TxnID)
	return true, nil
}

// GetBalance returns the user's wallet with short-TTL caching.
// Cache key: "wallet:{user_id}", TTL: 1 minute
func (r *WalletRepo) GetBalance(ctx context.Context, userID int64) (*Wallet, error) {
	cacheKey := BuildCacheKey(CacheKeyWallet, strconv.FormatInt(userID, 10))

	var cached Wallet
	if err := r.cache.Get(ctx, cacheKey, &cached); err == nil {
		r.logger.Debugw("wallet cache hit", "user_id", userID)
		return &cached, nil
	}

	wallet, err := r.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, cacheKey, wallet, TTLWallet); err != nil {
		r.logger.Warnw("failed to cache wallet", "user_id", userID, "error", err)
	}

	return wallet, nil
}

// ListTransactions returns a page of the wallet's transactions, newest first.
func (r *WalletRepo) ListTransactions(ctx context.Context, userID int64, page, pageSize int32) ([]*WalletTransaction, int32, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	wallet, err := r.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	query := r.db.WithContext(ctx).Model(&WalletTransaction{}).Where("wallet_id = ?", wallet.ID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		r.logger.Errorf("failed to count wallet transactions: %v", err)
		return nil, 0, fmt.Errorf("failed to count wallet transactions: %w", err)
	}

	var txns []*WalletTransaction
	offset := (page - 1) * pageSize
	if err := query.Offset(int(offset)).Limit(int(pageSize)).
		Order("created_at DESC, id DESC").
		Find(&txns).Error; err != nil {
		r.logger.Errorf("failed to list wallet transactions: %v", err)
		return nil, 0, fmt.Errorf("failed to list wallet transactions: %w", err)
	}

	// Safe conversion of int64 to int32 with overflow check
	if total > 2147483647 { // max int32
		return txns, 2147483647, nil
	}
	return txns, int32(total), nil // #nosec G115 -- safe conversion with overflow check
}

func (r *WalletRepo) invalidateWalletCache(ctx context.Context, userID int64) {
	cacheKey := BuildCacheKey(CacheKeyWallet, strconv.FormatInt(userID, 10))
	if err := r.cache.Delete(ctx, cacheKey); err != nil {
		r.logger.Warnw("failed to delete wallet cache", "user_id", userID, "error", err)
	}
}
