package domain

import "github.com/shopspring/decimal"

// Basis records how a derived metric was obtained.
type Basis string

const (
	BasisComputed    Basis = "computed"
	BasisObserved    Basis = "observed"
	BasisFallback    Basis = "fallback"
	BasisUnavailable Basis = "unavailable"
)

// Metric is a derived value flagged with its basis. Unavailable metrics carry zero.
type Metric struct {
	Value decimal.Decimal
	Basis Basis
}

// Computed builds a metric from a successful computation.
func Computed(v decimal.Decimal) Metric {
	return Metric{Value: v, Basis: BasisComputed}
}

// Unavailable is a metric whose inputs were missing or whose denominator was not usable.
func Unavailable() Metric {
	return Metric{Value: decimal.Zero, Basis: BasisUnavailable}
}

// Available reports whether the metric was derived from actual inputs.
func (m Metric) Available() bool {
	return m.Basis != BasisUnavailable && m.Basis != ""
}

// DerivedMetrics are ratios and growth rates computed from a filing and a market snapshot.
type DerivedMetrics struct {
	DebtRatio    Metric
	CurrentRatio Metric
	ROE          Metric
	FreeCashFlow Metric
	EBITDA       Metric

	RevenueGrowth         Metric
	OperatingIncomeGrowth Metric
	NetIncomeGrowth       Metric

	PriorRevenueGrowth         Metric
	PriorOperatingIncomeGrowth Metric
	PriorNetIncomeGrowth       Metric

	PricePosition52w Metric
	MA5Gap           Metric
	MA20Gap          Metric

	AnnualizedRevenue         Metric
	AnnualizedOperatingIncome Metric
	AnnualizedNetIncome       Metric
}
