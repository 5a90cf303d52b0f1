package biz

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-kratos/kratos/v2/log"

	"AeroSentry/internal/data"
	pkglog "AeroSentry/pkg/log"
)

// Context field names usable in rule conditions.
const (
	FieldDisruptionType     = "disruption_type"
	FieldBookingClass       = "booking_class"
	FieldAirline            = "airline"
	FieldOriginCountry      = "origin_country"
	FieldDestinationCountry = "destination_country"
	FieldDelayHours         = "delay_hours"
	FieldFlightDistanceKM   = "flight_distance_km"
	FieldIsInternational    = "is_international"
)

// MaxCompensationAmount caps any single payout.
const MaxCompensationAmount = 2000.0

// Condition is a single predicate over a calculation context field.
// Conditions are tagged by kind instead of encoding comparisons into
// field-name suffixes, so rules stored as JSON stay self-describing.
type Condition struct {
	Kind      string  `json:"kind"`
	Field     string  `json:"field"`
	Value     string  `json:"value,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// Equals builds an equality condition on a context field.
func Equals(field, value string) Condition {
	return Condition{Kind: data.ConditionKindEquals, Field: field, Value: value}
}

// AtLeast builds a lower-bound condition on a numeric context field.
func AtLeast(field string, threshold float64) Condition {
	return Condition{Kind: data.ConditionKindAtLeast, Field: field, Threshold: threshold}
}

// AtMost builds an upper-bound condition on a numeric context field.
func AtMost(field string, threshold float64) Condition {
	return Condition{Kind: data.ConditionKindAtMost, Field: field, Threshold: threshold}
}

// Rule is a compensation rule in evaluable form.
type Rule struct {
	ID          string
	Description string
	BaseAmount  float64
	Currency    string
	Priority    int
	Conditions  []Condition
}

// CalculationContext carries the known facts about a disruption.
// Pointer fields distinguish "not provided" from a zero value; a
// condition over an absent field never matches.
type CalculationContext struct {
	DisruptionType     string   `json:"disruption_type"`
	BookingClass       string   `json:"booking_class,omitempty"`
	Airline            string   `json:"airline,omitempty"`
	OriginCountry      string   `json:"origin_country,omitempty"`
	DestinationCountry string   `json:"destination_country,omitempty"`
	DelayHours         *float64 `json:"delay_hours,omitempty"`
	FlightDistanceKM   *float64 `json:"flight_distance_km,omitempty"`
	IsInternational    *bool    `json:"is_international,omitempty"`
}

// stringValue returns the string field value and whether it is present.
func (c *CalculationContext) stringValue(field string) (string, bool) {
	var v string
	switch field {
	case FieldDisruptionType:
		v = c.DisruptionType
	case FieldBookingClass:
		v = c.BookingClass
	case FieldAirline:
		v = c.Airline
	case FieldOriginCountry:
		v = c.OriginCountry
	case FieldDestinationCountry:
		v = c.DestinationCountry
	default:
		return "", false
	}
	return v, v != ""
}

// numericValue returns the numeric field value and whether it is present.
func (c *CalculationContext) numericValue(field string) (float64, bool) {
	switch field {
	case FieldDelayHours:
		if c.DelayHours != nil {
			return *c.DelayHours, true
		}
	case FieldFlightDistanceKM:
		if c.FlightDistanceKM != nil {
			return *c.FlightDistanceKM, true
		}
	}
	return 0, false
}

// matches reports whether the condition holds against the context.
// Absent context data disqualifies: an unset field makes every
// condition over it false.
func (cond Condition) matches(c *CalculationContext) bool {
	switch cond.Kind {
	case data.ConditionKindEquals:
		if cond.Field == FieldIsInternational {
			if c.IsInternational == nil {
				return false
			}
			want, err := strconv.ParseBool(cond.Value)
			if err != nil {
				return false
			}
			return *c.IsInternational == want
		}
		if v, ok := c.numericValue(cond.Field); ok {
			want, err := strconv.ParseFloat(cond.Value, 64)
			if err != nil {
				return false
			}
			return v == want
		}
		v, ok := c.stringValue(cond.Field)
		return ok && strings.EqualFold(v, cond.Value)
	case data.ConditionKindAtLeast:
		v, ok := c.numericValue(cond.Field)
		return ok && v >= cond.Threshold
	case data.ConditionKindAtMost:
		v, ok := c.numericValue(cond.Field)
		return ok && v <= cond.Threshold
	}
	return false
}

// matchesAll reports whether every condition of the rule holds.
func (r *Rule) matchesAll(c *CalculationContext) bool {
	for _, cond := range r.Conditions {
		if !cond.matches(c) {
			return false
		}
	}
	return len(r.Conditions) > 0
}

// CalculationResult is the outcome of a compensation calculation.
type CalculationResult struct {
	Eligible     bool               `json:"eligible"`
	Amount       float64            `json:"amount"`
	Currency     string             `json:"currency"`
	RuleApplied  string             `json:"rule_applied"`
	RulePriority int                `json:"rule_priority"`
	BaseAmount   float64            `json:"base_amount"`
	Multipliers  map[string]float64 `json:"multipliers,omitempty"`
	Reason       string             `json:"reason"`
}

// RuleSource supplies the active rule set to the engine. Implementations
// must never fail the caller; on load problems they return a usable set.
type RuleSource interface {
	Rules(ctx context.Context) []Rule
}

// CompensationEngine evaluates disruption contexts against compensation
// rules. Calculate is a pure function of context and rule set and never
// returns an error; anything it cannot evaluate degrades to not-eligible.
type CompensationEngine struct {
	source RuleSource
	logger *pkglog.LogHelper
}

// NewCompensationEngine creates a compensation engine over the given rule source.
func NewCompensationEngine(source RuleSource, logger log.Logger) *CompensationEngine {
	return &CompensationEngine{
		source: source,
		logger: pkglog.NewLogHelper(logger),
	}
}

// Calculate evaluates the context against the active rule set and returns
// the compensation outcome. Selection picks the single highest-priority
// matching rule; ties resolve to the earliest rule in the set.
func (e *CompensationEngine) Calculate(ctx context.Context, c *CalculationContext) *CalculationResult {
	result := &CalculationResult{
		Currency:    "USD",
		Multipliers: map[string]float64{},
		Reason:      "no matching compensation rule",
	}
	if c == nil || c.DisruptionType == "" {
		result.Reason = "missing disruption type"
		return result
	}

	rules := e.source.Rules(ctx)

	var selected *Rule
	for i := range rules {
		r := &rules[i]
		if !r.matchesAll(c) {
			continue
		}
		if selected == nil || r.Priority > selected.Priority {
			selected = r
		}
	}
	if selected == nil {
		e.logger.Debugw("No compensation rule matched",
			"disruption_type", c.DisruptionType,
			"booking_class", c.BookingClass)
		return result
	}

	amount := selected.BaseAmount
	switch {
	case strings.EqualFold(c.BookingClass, string(data.ClassBusiness)):
		amount *= 1.5
		result.Multipliers["booking_class"] = 1.5
	case strings.EqualFold(c.BookingClass, string(data.ClassFirst)):
		amount *= 2.0
		result.Multipliers["booking_class"] = 2.0
	}
	if c.IsInternational != nil && *c.IsInternational {
		amount *= 1.2
		result.Multipliers["international"] = 1.2
	}
	if c.DelayHours != nil {
		switch {
		case *c.DelayHours >= 12:
			amount *= 1.5
			result.Multipliers["extended_delay"] = 1.5
		case *c.DelayHours >= 8:
			amount *= 1.25
			result.Multipliers["extended_delay"] = 1.25
		}
	}

	if amount > MaxCompensationAmount {
		amount = MaxCompensationAmount
	}
	if amount < 0 {
		amount = 0
	}
	amount = math.Round(amount*100) / 100

	result.Eligible = amount > 0
	result.Amount = amount
	result.RuleApplied = selected.ID
	result.RulePriority = selected.Priority
	result.BaseAmount = selected.BaseAmount
	if selected.Currency != "" {
		result.Currency = selected.Currency
	}
	result.Reason = fmt.Sprintf("matched rule %s: %s", selected.ID, selected.Description)
	if !result.Eligible {
		result.Reason = fmt.Sprintf("rule %s matched but amount resolved to zero", selected.ID)
	}

	e.logger.Compensation("Compensation calculated",
		"rule", selected.ID,
		"base", selected.BaseAmount,
		"amount", amount,
		"eligible", result.Eligible)

	return result
}

// parseConditions decodes the JSON condition list stored on a database rule.
func parseConditions(raw string) ([]Condition, error) {
	var conds []Condition
	if err := json.Unmarshal([]byte(raw), &conds); err != nil {
		return nil, fmt.Errorf("invalid rule conditions: %w", err)
	}
	for _, cond := range conds {
		switch cond.Kind {
		case data.ConditionKindEquals, data.ConditionKindAtLeast, data.ConditionKindAtMost:
		default:
			return nil, fmt.Errorf("unknown condition kind %q", cond.Kind)
		}
	}
	return conds, nil
}
