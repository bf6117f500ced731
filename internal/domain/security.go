package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNotFound reports that a source has no data for the requested key.
var ErrNotFound = errors.New("not found")

// Market identifies the exchange segment a security trades on.
type Market string

const (
	MarketKOSPI  Market = "KOSPI"
	MarketKOSDAQ Market = "KOSDAQ"
	MarketAll    Market = "ALL"
)

// ParseMarket normalizes a user supplied market name.
func ParseMarket(value string) (Market, error) {
	switch Market(strings.ToUpper(strings.TrimSpace(value))) {
	case MarketKOSPI, "":
		return MarketKOSPI, nil
	case MarketKOSDAQ:
		return MarketKOSDAQ, nil
	case MarketAll:
		return MarketAll, nil
	default:
		return "", fmt.Errorf("unknown market %q", value)
	}
}

// Security is immutable once resolved for a run.
type Security struct {
	ID     string
	Name   string
	Market Market
}

// Fundamentals are the per-share valuation figures published by the market provider.
type Fundamentals struct {
	PER           decimal.NullDecimal
	PBR           decimal.NullDecimal
	EPS           decimal.NullDecimal
	BPS           decimal.NullDecimal
	DividendYield decimal.NullDecimal
}

// Listing is one row of the security universe for a trading day.
type Listing struct {
	Security     Security
	Sector       string
	MarketCap    decimal.NullDecimal
	Fundamentals Fundamentals
}

// Known wraps an observed value.
func Known(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// KnownInt wraps an observed integer value.
func KnownInt(v int64) decimal.NullDecimal {
	return Known(decimal.NewFromInt(v))
}

// OrZero collapses an unknown value to zero.
func OrZero(n decimal.NullDecimal) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	return n.Decimal
}

// Positive reports whether n is known and strictly greater than zero.
func Positive(n decimal.NullDecimal) bool {
	return n.Valid && n.Decimal.IsPositive()
}

// FirstKnown returns the first known value in order, or unknown.
func FirstKnown(values ...decimal.NullDecimal) decimal.NullDecimal {
	for _, v := range values {
		if v.Valid {
			return v
		}
	}
	return decimal.NullDecimal{}
}
