package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"AeroSentry/internal/conf"
	"AeroSentry/pkg/crypto"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// EmailConnection is the GORM model for email_connections table.
// Access tokens are encrypted at rest with AES-256-GCM.
type EmailConnection struct {
	ID                   int64      `gorm:"primaryKey;column:id"`
	UserID               int64      `gorm:"column:user_id;not null;index"`
	Provider             string     `gorm:"column:provider;size:20;not null"` // gmail, outlook, imap
	EmailAddress         string     `gorm:"column:email_address;size:255;not null;uniqueIndex"`
	AccessTokenEncrypted string     `gorm:"column:access_token_encrypted;type:varchar(2048)"`
	LastSync             *time.Time `gorm:"column:last_sync"`
	Active               bool       `gorm:"column:active;default:true;not null"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (EmailConnection) TableName() string {
	return "email_connections"
}

// NewAESCryptoFromConf builds the at-rest encryption service from config.
// A missing key disables encrypted storage rather than failing startup.
func NewAESCryptoFromConf(c *conf.Auth, logger log.Logger) (*crypto.AESCrypto, error) {
	helper := log.NewHelper(logger)
	if c == nil || c.Encryption == nil || c.Encryption.Key == "" {
		helper.Warn("encryption key not configured, email token storage will be disabled")
		return nil, nil
	}
	aes, err := crypto.NewAESCrypto([]byte(c.Encryption.Key))
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	return aes, nil
}

// EmailConnectionRepo implements biz.EmailConnectionRepo interface.
// Following Kratos v2 DDD architecture, interface is defined in biz layer.
type EmailConnectionRepo struct {
	db     *gorm.DB
	aes    *crypto.AESCrypto
	logger *log.Helper
}

// NewEmailConnectionRepo creates a new email connection repository.
func NewEmailConnectionRepo(db *gorm.DB, aes *crypto.AESCrypto, logger log.Logger) *EmailConnectionRepo {
	return &EmailConnectionRepo{
		db:     db,
		aes:    aes,
		logger: log.NewHelper(logger),
	}
}

// SaveConnection upserts an email connection, encrypting the access token
// before it touches the database.
func (r *EmailConnectionRepo) SaveConnection(ctx context.Context, conn *EmailConnection, accessToken string) error {
	if accessToken != "" {
		if r.aes == nil {
			return fmt.Errorf("encryption key not configured, cannot store access token")
		}
		encrypted, err := r.aes.Encrypt(accessToken)
		if err != nil {
			return fmt.Errorf("failed to encrypt access token: %w", err)
		}
		conn.AccessTokenEncrypted = encrypted
	}

	var existing EmailConnection
	err := r.db.WithContext(ctx).Where("email_address = ?", conn.EmailAddress).First(&existing).Error
	switch {
	case err == nil:
		conn.ID = existing.ID
		conn.CreatedAt = existing.CreatedAt
		if err := r.db.WithContext(ctx).Save(conn).Error; err != nil {
			r.logger.Errorf("failed to update email connection: %v", err)
			return fmt.Errorf("failed to update email connection: %w", err)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := r.db.WithContext(ctx).Create(conn).Error; err != nil {
			r.logger.Errorf("failed to create email connection: %v", err)
			return fmt.Errorf("failed to create email connection: %w", err)
		}
	default:
		return fmt.Errorf("failed to look up email connection: %w", err)
	}

	r.logger.Infow("email connection saved",
		"id", conn.ID,
		"user_id", conn.UserID,
		"provider", conn.Provider)
	return nil
}

// GetAccessToken decrypts and returns the connection's stored access token.
func (r *EmailConnectionRepo) GetAccessToken(ctx context.Context, id int64) (string, error) {
	var conn EmailConnection
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&conn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("email connection not found: id=%d", id)
		}
		return "", fmt.Errorf("failed to get email connection: %w", err)
	}
	if conn.AccessTokenEncrypted == "" {
		return "", nil
	}
	if r.aes == nil {
		return "", fmt.Errorf("encryption key not configured, cannot read access token")
	}
	token, err := r.aes.Decrypt(conn.AccessTokenEncrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt access token: %w", err)
	}
	return token, nil
}

// ListActiveConnections returns connections eligible for a sync pass.
func (r *EmailConnectionRepo) ListActiveConnections(ctx context.Context) ([]*EmailConnection, error) {
	var conns []*EmailConnection
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("last_sync ASC").
		Find(&conns).Error
	if err != nil {
		r.logger.Errorf("failed to list active email connections: %v", err)
		return nil, fmt.Errorf("failed to list active email connections: %w", err)
	}
	return conns, nil
}

// UpdateLastSync records the completion time of a sync pass.
func (r *EmailConnectionRepo) UpdateLastSync(ctx context.Context, id int64, syncedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&EmailConnection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_sync":  syncedAt,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update last_sync: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("email connection not found: id=%d", id)
	}
	return nil
}
