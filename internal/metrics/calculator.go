package metrics

import (
	"github.com/shopspring/decimal"

	"FinanceCollector/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Calculate derives ratios and growth rates. It never fails: a missing input or an
// unusable denominator yields a zero metric flagged as unavailable.
func Calculate(items domain.FilingLineItems, snapshot domain.MarketSnapshot) domain.DerivedMetrics {
	return domain.DerivedMetrics{
		DebtRatio:    DebtRatio(snapshot.DebtRatio, items.Liabilities, items.Equity),
		CurrentRatio: CurrentRatio(items.CurrentAssets, items.CurrentLiabilities),
		ROE:          ROE(items.OperatingIncome, items.Equity, snapshot.EPS, snapshot.BPS),
		FreeCashFlow: FreeCashFlow(items.OperatingCashFlow, items.Capex),
		EBITDA:       EBITDA(items.OperatingIncome, items.DepreciationAmortization),

		RevenueGrowth:         Growth(items.Revenue, items.PriorYearRevenue),
		OperatingIncomeGrowth: Growth(items.OperatingIncome, items.PriorYearOperatingIncome),
		NetIncomeGrowth:       Growth(items.NetIncome, items.PriorYearNetIncome),

		PriorRevenueGrowth:         Growth(items.PriorYearRevenue, items.PriorPriorYearRevenue),
		PriorOperatingIncomeGrowth: Growth(items.PriorYearOperatingIncome, items.PriorPriorYearOperatingIncome),
		PriorNetIncomeGrowth:       Growth(items.PriorYearNetIncome, items.PriorPriorYearNetIncome),

		PricePosition52w: PricePosition(snapshot.CurrentPrice, snapshot.High52w, snapshot.Low52w),
		MA5Gap:           AverageGap(domain.FirstKnown(snapshot.CurrentPrice, snapshot.LastClose), snapshot.MA5),
		MA20Gap:          AverageGap(domain.FirstKnown(snapshot.CurrentPrice, snapshot.LastClose), snapshot.MA20),

		AnnualizedRevenue:         Annualize(items.Revenue, items.Period),
		AnnualizedOperatingIncome: Annualize(items.OperatingIncome, items.Period),
		AnnualizedNetIncome:       Annualize(items.NetIncome, items.Period),
	}
}

// Growth is (current - prior) / |prior| * 100, or zero when prior is zero or unknown.
func Growth(current, prior decimal.NullDecimal) domain.Metric {
	if !current.Valid || !prior.Valid || prior.Decimal.IsZero() {
		return domain.Unavailable()
	}
	return domain.Computed(current.Decimal.Sub(prior.Decimal).Div(prior.Decimal.Abs()).Mul(hundred))
}

// DebtRatio prefers a positive observed ratio, then liabilities / equity * 100.
func DebtRatio(observed, liabilities, equity decimal.NullDecimal) domain.Metric {
	if domain.Positive(observed) {
		return domain.Metric{Value: observed.Decimal, Basis: domain.BasisObserved}
	}
	if !liabilities.Valid || !domain.Positive(equity) {
		return domain.Unavailable()
	}
	return domain.Computed(liabilities.Decimal.Div(equity.Decimal).Mul(hundred))
}

// ROE prefers operating income / equity when both are positive, then EPS / BPS.
func ROE(operatingIncome, equity, eps, bps decimal.NullDecimal) domain.Metric {
	if domain.Positive(operatingIncome) && domain.Positive(equity) {
		return domain.Computed(operatingIncome.Decimal.Div(equity.Decimal).Mul(hundred))
	}
	if eps.Valid && domain.Positive(bps) {
		return domain.Metric{Value: eps.Decimal.Div(bps.Decimal).Mul(hundred), Basis: domain.BasisFallback}
	}
	return domain.Unavailable()
}

// CurrentRatio is current assets / current liabilities * 100.
func CurrentRatio(currentAssets, currentLiabilities decimal.NullDecimal) domain.Metric {
	if !currentAssets.Valid || !domain.Positive(currentLiabilities) {
		return domain.Unavailable()
	}
	return domain.Computed(currentAssets.Decimal.Div(currentLiabilities.Decimal).Mul(hundred))
}

// FreeCashFlow is operating cash flow minus capex. Capex is an outflow magnitude.
func FreeCashFlow(operatingCashFlow, capex decimal.NullDecimal) domain.Metric {
	if !operatingCashFlow.Valid {
		return domain.Unavailable()
	}
	return domain.Computed(operatingCashFlow.Decimal.Sub(domain.OrZero(capex).Abs()))
}

// EBITDA is operating income plus depreciation and amortization.
func EBITDA(operatingIncome, depreciation decimal.NullDecimal) domain.Metric {
	if !operatingIncome.Valid {
		return domain.Unavailable()
	}
	return domain.Computed(operatingIncome.Decimal.Add(domain.OrZero(depreciation)))
}

// PricePosition places the price within its 52-week range, 0 at the low and 100 at the high.
func PricePosition(price, high, low decimal.NullDecimal) domain.Metric {
	if !price.Valid || !domain.Positive(low) || !high.Valid || !high.Decimal.GreaterThan(low.Decimal) {
		return domain.Unavailable()
	}
	span := high.Decimal.Sub(low.Decimal)
	return domain.Computed(price.Decimal.Sub(low.Decimal).Div(span).Mul(hundred))
}

// AverageGap is how far the price sits above its moving average, in percent.
func AverageGap(price, average decimal.NullDecimal) domain.Metric {
	if !price.Valid || !domain.Positive(average) {
		return domain.Unavailable()
	}
	return domain.Computed(price.Decimal.Sub(average.Decimal).Div(average.Decimal).Mul(hundred))
}

// Annualize scales a cumulative-period figure to twelve months.
func Annualize(value decimal.NullDecimal, period domain.ReportPeriod) domain.Metric {
	months := period.Months()
	if !value.Valid || months == 0 {
		return domain.Unavailable()
	}
	if months == 12 {
		return domain.Computed(value.Decimal)
	}
	return domain.Metric{
		Value: value.Decimal.Mul(decimal.NewFromInt(12)).Div(decimal.NewFromInt(int64(months))),
		Basis: domain.BasisFallback,
	}
}
