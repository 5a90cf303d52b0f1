package biz

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ruleCacheTTL bounds how stale the in-process rule cache may get.
const ruleCacheTTL = 5 * time.Minute

// DefaultRules returns the built-in compensation rule table. It is the
// rule set of last resort: the engine must always have something to
// evaluate against, even with the database unreachable.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "EU261_CANCELLATION_SHORT",
			Description: "EU261 cancellation, short haul (under 1500 km)",
			BaseAmount:  250,
			Currency:    "USD",
			Priority:    90,
			Conditions: []Condition{
				Equals(FieldDisruptionType, "CANCELLED"),
				AtMost(FieldFlightDistanceKM, 1500),
				Equals(FieldIsInternational, "true"),
			},
		},
		{
			ID:          "EU261_CANCELLATION_MEDIUM",
			Description: "EU261 cancellation, medium haul (1500 to 3500 km)",
			BaseAmount:  400,
			Currency:    "USD",
			Priority:    90,
			Conditions: []Condition{
				Equals(FieldDisruptionType, "CANCELLED"),
				AtLeast(FieldFlightDistanceKM, 1500),
				AtMost(FieldFlightDistanceKM, 3500),
				Equals(FieldIsInternational, "true"),
			},
		},
		{
			ID:          "EU261_CANCELLATION_LONG",
			Description: "EU261 cancellation, long haul (over 3500 km)",
			BaseAmount:  600,
			Currency:    "USD",
			Priority:    90,
			Conditions: []Condition{
				Equals(FieldDisruptionType, "CANCELLED"),
				AtLeast(FieldFlightDistanceKM, 3500),
				Equals(FieldIsInternational, "true"),
			},
		},
		{
			ID:          "US_DOMESTIC_CANCELLATION",
			Description: "US domestic cancellation",
			BaseAmount:  200,
			Currency:    "USD",
			Priority:    80,
			Conditions: []Condition{
				Equals(FieldDisruptionType, "CANCELLED"),
				Equals(FieldOriginCountry, "US"),
				Equals(FieldDestinationCountry, "US"),
			},
		},
		{
			ID:          "MAJOR_DELAY_3H",
			Description: "Delay of 3 hours or more",
			BaseAmount:  150,
			Currency:    "USD",
			Priority:    70,
			Conditions: []Condition{
				Equals(FieldDisruptionType, "DELAYED"),
				AtLeast(FieldDelayHours, 3),
			},
		},
		{
			ID:          "SEVERE_DELAY_6H",
			Description: "Delay of 6 hours or more",
			BaseAmount:  300,
			Currency:    "USD",
			Priority:    75,
			Conditions: []Condition{
				Equals(FieldDisruptionType, "DELAYED"),
				AtLeast(FieldDelayHours, 6),
			},
		},
		{
			ID:          "FLIGHT_DIVERSION",
			Description: "Flight diverted to another airport",
			BaseAmount:  250,
			Currency:    "USD",
			Priority:    85,
			Conditions: []Condition{
				Equals(FieldDisruptionType, "DIVERTED"),
			},
		},
		{
			ID:          "OVERBOOKING_DOMESTIC",
			Description: "Denied boarding, domestic flight",
			BaseAmount:  400,
			Currency:    "USD",
			Priority:    95,
			Conditions: []Condition{
				Equals(FieldDisruptionType, "OVERBOOKED"),
				Equals(FieldIsInternational, "false"),
			},
		},
		{
			ID:          "OVERBOOKING_INTERNATIONAL",
			Description: "Denied boarding, international flight",
			BaseAmount:  675,
			Currency:    "USD",
			Priority:    95,
			Conditions: []Condition{
				Equals(FieldDisruptionType, "OVERBOOKED"),
				Equals(FieldIsInternational, "true"),
			},
		},
		{
			ID:          "BUSINESS_CLASS_BONUS",
			Description: "Business class goodwill payment",
			BaseAmount:  100,
			Currency:    "USD",
			Priority:    50,
			Conditions: []Condition{
				Equals(FieldBookingClass, "Business"),
			},
		},
		{
			ID:          "FIRST_CLASS_BONUS",
			Description: "First class goodwill payment",
			BaseAmount:  200,
			Currency:    "USD",
			Priority:    50,
			Conditions: []Condition{
				Equals(FieldBookingClass, "First"),
			},
		},
	}
}

// StaticRuleSource serves a fixed rule set.
type StaticRuleSource struct {
	rules []Rule
}

// NewStaticRuleSource creates a rule source over the default rule table.
func NewStaticRuleSource() *StaticRuleSource {
	return &StaticRuleSource{rules: DefaultRules()}
}

// Rules returns the static rule set.
func (s *StaticRuleSource) Rules(_ context.Context) []Rule {
	return s.rules
}

// DBRuleSource loads active rules from MySQL, memoized in an expirable
// in-process LRU so the engine's hot path does not block on the database.
// Any load failure falls back to the static default table.
type DBRuleSource struct {
	repo   RuleRepo
	static *StaticRuleSource
	cache  *expirable.LRU[string, []Rule]
	logger *log.Helper
}

// NewDBRuleSource creates a database-backed rule source with static fallback.
func NewDBRuleSource(repo RuleRepo, logger log.Logger) *DBRuleSource {
	return &DBRuleSource{
		repo:   repo,
		static: NewStaticRuleSource(),
		cache:  expirable.NewLRU[string, []Rule](1, nil, ruleCacheTTL),
		logger: log.NewHelper(logger),
	}
}

const activeRulesKey = "active"

// Rules returns the active rule set. Database or decode failures are
// logged and the static defaults are returned instead; callers never
// see a load error.
func (s *DBRuleSource) Rules(ctx context.Context) []Rule {
	if cached, ok := s.cache.Get(activeRulesKey); ok {
		return cached
	}

	rows, err := s.repo.ListActiveRules(ctx)
	if err != nil {
		s.logger.Warnw("Failed to load compensation rules, using defaults",
			"error", err)
		return s.static.Rules(ctx)
	}
	if len(rows) == 0 {
		return s.static.Rules(ctx)
	}

	rules := make([]Rule, 0, len(rows))
	for _, row := range rows {
		conds, err := parseConditions(row.Conditions)
		if err != nil {
			s.logger.Warnw("Skipping malformed compensation rule",
				"rule_id", row.RuleID,
				"error", err)
			continue
		}
		rules = append(rules, Rule{
			ID:          row.RuleID,
			Description: row.Description,
			BaseAmount:  row.BaseAmount,
			Currency:    row.Currency,
			Priority:    row.Priority,
			Conditions:  conds,
		})
	}
	if len(rules) == 0 {
		s.logger.Warnw("All database compensation rules were malformed, using defaults")
		return s.static.Rules(ctx)
	}

	s.cache.Add(activeRulesKey, rules)
	return rules
}

var _ RuleSource = (*StaticRuleSource)(nil)
var _ RuleSource = (*DBRuleSource)(nil)
