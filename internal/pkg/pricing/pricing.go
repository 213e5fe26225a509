// Package pricing turns a requested credit quantity into a tiered price.
//
// All arithmetic uses exact decimals; rounding to cents only happens in
// FormatUSD and Cents, at the display and payment-provider boundary.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/shopspring/decimal"
)

const (
	DefaultMinCredits = 100
	DefaultMaxCredits = 100000
)

// DefaultBasePricePerCredit is the undiscounted USD price of one credit.
var DefaultBasePricePerCredit = decimal.RequireFromString("0.04")

var hundred = decimal.NewFromInt(100)

// Tier is a contiguous credit range sharing one discount. MaxCredits == 0
// means the range is unbounded above.
type Tier struct {
	MinCredits      int             `json:"min_credits"`
	MaxCredits      int             `json:"max_credits"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	PricePerCredit  decimal.Decimal `json:"price_per_credit"`
	Label           string          `json:"label"`
}

func (t Tier) contains(credits int) bool {
	return credits >= t.MinCredits && (t.MaxCredits == 0 || credits <= t.MaxCredits)
}

// Calculation is the price breakdown for one quantity. It is computed per
// request and never persisted.
type Calculation struct {
	Credits        int             `json:"credits"`
	Tier           Tier            `json:"tier"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
	PricePerCredit decimal.Decimal `json:"price_per_credit"`
	Savings        decimal.Decimal `json:"savings"`
}

// ValidationResult is the advisory outcome of Validate.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Table is an immutable tier table. Build it with NewTable or use Default.
type Table struct {
	base       decimal.Decimal
	minCredits int
	maxCredits int
	tiers      []Tier
}

// TierSpec describes a tier before per-credit prices are derived.
type TierSpec struct {
	Label           string
	MinCredits      int
	MaxCredits      int
	DiscountPercent decimal.Decimal
}

var (
	ErrNoTiers        = errors.New("pricing: tier table is empty")
	ErrInvalidBounds  = errors.New("pricing: invalid credit bounds")
	ErrInvalidBase    = errors.New("pricing: base price must be positive")
	ErrTierGap        = errors.New("pricing: tiers leave a gap or overlap")
	ErrTierDiscount   = errors.New("pricing: discount out of range")
	ErrTierMonotonic  = errors.New("pricing: larger tiers must not have smaller discounts")
	ErrTierBoundsSpan = errors.New("pricing: tiers do not span the credit bounds")
)

// NewTable builds a table and checks that the tiers partition
// [minCredits, maxCredits] without gaps or overlaps.
func NewTable(base decimal.Decimal, minCredits, maxCredits int, specs []TierSpec) (*Table, error) {
	t := &Table{
		base:       base,
		minCredits: minCredits,
		maxCredits: maxCredits,
		tiers:      make([]Tier, 0, len(specs)),
	}
	for _, s := range specs {
		t.tiers = append(t.tiers, Tier{
			MinCredits:      s.MinCredits,
			MaxCredits:      s.MaxCredits,
			DiscountPercent: s.DiscountPercent,
			PricePerCredit:  base.Mul(hundred.Sub(s.DiscountPercent)).Div(hundred),
			Label:           s.Label,
		})
	}
	if err := t.ValidateTiers(); err != nil {
		return nil, err
	}
	return t, nil
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the production tier table, built once per process.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := NewTable(DefaultBasePricePerCredit, DefaultMinCredits, DefaultMaxCredits, []TierSpec{
			{Label: "Starter", MinCredits: 100, MaxCredits: 999, DiscountPercent: decimal.Zero},
			{Label: "Popular", MinCredits: 1000, MaxCredits: 4999, DiscountPercent: decimal.NewFromInt(5)},
			{Label: "Pro", MinCredits: 5000, MaxCredits: 9999, DiscountPercent: decimal.NewFromInt(10)},
			{Label: "Business", MinCredits: 10000, MaxCredits: 49999, DiscountPercent: decimal.NewFromInt(15)},
			{Label: "Enterprise", MinCredits: 50000, MaxCredits: 100000, DiscountPercent: decimal.NewFromInt(20)},
		})
		if err != nil {
			panic(err)
		}
		defaultTable = t
	})
	return defaultTable
}

// BasePricePerCredit returns the undiscounted rate.
func (t *Table) BasePricePerCredit() decimal.Decimal { return t.base }

// MinCredits returns the smallest purchasable quantity.
func (t *Table) MinCredits() int { return t.minCredits }

// MaxCredits returns the largest purchasable quantity.
func (t *Table) MaxCredits() int { return t.maxCredits }

// Tiers returns a copy of the tier list in ascending order.
func (t *Table) Tiers() []Tier {
	out := make([]Tier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// Clamp forces credits into [MinCredits, MaxCredits].
func (t *Table) Clamp(credits int) int {
	if credits < t.minCredits {
		return t.minCredits
	}
	if credits > t.maxCredits {
		return t.maxCredits
	}
	return credits
}

// GetTier returns the tier containing credits, or the highest tier when
// nothing matches.
func (t *Table) GetTier(credits int) Tier {
	for _, tier := range t.tiers {
		if tier.contains(credits) {
			return tier
		}
	}
	return t.tiers[len(t.tiers)-1]
}

// Calculate prices a quantity. Out-of-range input is clamped silently, so the
// result is always usable; use Validate to reject input at the UI boundary.
func (t *Table) Calculate(credits int) Calculation {
	credits = t.Clamp(credits)
	tier := t.GetTier(credits)

	qty := decimal.NewFromInt(int64(credits))
	subtotal := qty.Mul(t.base)
	discount := subtotal.Mul(tier.DiscountPercent).Div(hundred)
	total := subtotal.Sub(discount)

	return Calculation{
		Credits:        credits,
		Tier:           tier,
		Subtotal:       subtotal,
		DiscountAmount: discount,
		Total:          total,
		PricePerCredit: total.Div(qty),
		Savings:        discount,
	}
}

// Validate reports whether credits is an acceptable purchase quantity.
func (t *Table) Validate(credits float64) ValidationResult {
	if math.IsNaN(credits) || math.IsInf(credits, 0) || math.Trunc(credits) != credits {
		return ValidationResult{Valid: false, Error: "Credits must be a whole number"}
	}
	if credits < float64(t.minCredits) {
		return ValidationResult{Valid: false, Error: fmt.Sprintf("Minimum purchase is %d credits", t.minCredits)}
	}
	if credits > float64(t.maxCredits) {
		return ValidationResult{Valid: false, Error: fmt.Sprintf("Maximum purchase is %d credits", t.maxCredits)}
	}
	return ValidationResult{Valid: true}
}

// ValidateTiers checks the partition invariants of the table.
func (t *Table) ValidateTiers() error {
	if len(t.tiers) == 0 {
		return ErrNoTiers
	}
	if t.minCredits <= 0 || t.maxCredits < t.minCredits {
		return ErrInvalidBounds
	}
	if !t.base.IsPositive() {
		return ErrInvalidBase
	}
	if t.tiers[0].MinCredits != t.minCredits {
		return fmt.Errorf("%w: first tier starts at %d, want %d", ErrTierBoundsSpan, t.tiers[0].MinCredits, t.minCredits)
	}

	for i, tier := range t.tiers {
		if tier.DiscountPercent.IsNegative() || tier.DiscountPercent.GreaterThan(hundred) {
			return fmt.Errorf("%w: tier %q", ErrTierDiscount, tier.Label)
		}
		last := i == len(t.tiers)-1
		if tier.MaxCredits == 0 && !last {
			return fmt.Errorf("%w: unbounded tier %q is not last", ErrTierGap, tier.Label)
		}
		if tier.MaxCredits != 0 && tier.MaxCredits < tier.MinCredits {
			return fmt.Errorf("%w: tier %q is empty", ErrTierGap, tier.Label)
		}
		if i > 0 {
			prev := t.tiers[i-1]
			if tier.MinCredits != prev.MaxCredits+1 {
				return fmt.Errorf("%w: %q ends at %d, %q starts at %d", ErrTierGap, prev.Label, prev.MaxCredits, tier.Label, tier.MinCredits)
			}
			if tier.DiscountPercent.LessThan(prev.DiscountPercent) {
				return fmt.Errorf("%w: %q", ErrTierMonotonic, tier.Label)
			}
		}
		if last && tier.MaxCredits != 0 && tier.MaxCredits < t.maxCredits {
			return fmt.Errorf("%w: last tier ends at %d, want %d", ErrTierBoundsSpan, tier.MaxCredits, t.maxCredits)
		}
	}
	return nil
}

// FormatUSD renders an amount with two decimals for display.
func FormatUSD(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// Cents converts a USD amount to integer cents for the payment provider.
func Cents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}
