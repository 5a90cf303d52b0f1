package data

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// Condition kind constants stored in the conditions JSON column.
const (
	ConditionKindEquals  = "equals"
	ConditionKindAtLeast = "at_least"
	ConditionKindAtMost  = "at_most"
)

// CompensationRule is the GORM model for compensation_rules table.
// Conditions are stored as a JSON array of tagged objects, e.g.
// [{"kind":"equals","field":"disruption_type","value":"CANCELLED"},
//
//	{"kind":"at_least","field":"flight_distance_km","threshold":1500}]
type CompensationRule struct {
	ID          int64     `gorm:"primaryKey;column:id"`
	RuleID      string    `gorm:"column:rule_id;size:64;uniqueIndex;not null"`
	Description string    `gorm:"column:description;type:text"`
	BaseAmount  float64   `gorm:"column:base_amount;not null"`
	Currency    string    `gorm:"column:currency;size:3;default:'USD';not null"`
	Priority    int       `gorm:"column:priority;default:0;not null"`
	Conditions  string    `gorm:"column:conditions;type:json;not null"`
	Active      bool      `gorm:"column:active;default:true;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (CompensationRule) TableName() string {
	return "compensation_rules"
}

// RuleRepo implements biz.RuleRepo interface.
// Following Kratos v2 DDD architecture, interface is defined in biz layer.
type RuleRepo struct {
	db     *gorm.DB
	cache  CacheClient
	logger *log.Helper
}

// NewRuleRepo creates a new compensation rule repository.
func NewRuleRepo(data *Data, db *gorm.DB, logger log.Logger) *RuleRepo {
	return &RuleRepo{
		db:     db,
		cache:  data.GetCache(),
		logger: log.NewHelper(logger),
	}
}

// ListActiveRules returns all active rules ordered by priority descending,
// id ascending. The id tiebreak keeps selection deterministic when two rules
// share a priority.
func (r *RuleRepo) ListActiveRules(ctx context.Context) ([]*CompensationRule, error) {
	var rules []*CompensationRule
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("priority DESC, id ASC").
		Find(&rules).Error
	if err != nil {
		r.logger.Errorf("failed to list active rules: %v", err)
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}

	r.logger.Debugw("active compensation rules listed", "count", len(rules))
	return rules, nil
}
