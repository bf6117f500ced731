package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CollectionResult is one output row. It is never mutated after being appended to a Dataset.
type CollectionResult struct {
	Security Security
	Items    FilingLineItems
	Market   MarketSnapshot
	Metrics  DerivedMetrics
}

// Field is a named column of an output record.
type Field struct {
	Name  string
	Value string
}

// Record flattens the result for external consumers. Unknown amounts and
// unavailable metrics are written as 0 here and nowhere earlier; the data-basis
// column tells readers which period the figures describe.
func (r CollectionResult) Record() []Field {
	amount := func(name string, v decimal.NullDecimal) Field {
		return Field{Name: name, Value: OrZero(v).String()}
	}
	ratio := func(name string, v decimal.NullDecimal) Field {
		return Field{Name: name, Value: OrZero(v).StringFixed(2)}
	}
	metric := func(name string, m Metric) Field {
		return Field{Name: name, Value: m.Value.StringFixed(2)}
	}

	i, m, d := r.Items, r.Market, r.Metrics
	return []Field{
		{Name: "code", Value: r.Security.ID},
		{Name: "name", Value: r.Security.Name},
		{Name: "market", Value: string(r.Security.Market)},
		{Name: "sector", Value: m.Sector},
		{Name: "data_basis", Value: i.DataBasis()},
		amount("market_cap", m.MarketCap),
		amount("price", m.CurrentPrice),
		amount("prev_price", m.PrevPrice),
		amount("high_52w", m.High52w),
		amount("low_52w", m.Low52w),
		ratio("ma5", m.MA5),
		ratio("ma20", m.MA20),
		ratio("per", m.PER),
		ratio("pbr", m.PBR),
		ratio("eps", m.EPS),
		ratio("bps", m.BPS),
		ratio("dividend_yield", m.DividendYield),
		ratio("sector_avg_per", m.SectorAvgPER),
		ratio("sector_avg_pbr", m.SectorAvgPBR),
		ratio("sector_per", m.SectorPER),
		{Name: "opinion", Value: m.Opinion},
		amount("target_price", m.TargetPrice),
		amount("next_year_operating_income", m.NextYearOperatingIncome),
		ratio("foreign_ownership", m.ForeignOwnershipRatio),
		amount("foreign_net_5d", m.ForeignNet5d),
		amount("foreign_net_20d", m.ForeignNet20d),
		amount("institution_net_5d", m.InstitutionNet5d),
		amount("institution_net_20d", m.InstitutionNet20d),
		amount("revenue", i.Revenue),
		amount("operating_income", i.OperatingIncome),
		amount("net_income", i.NetIncome),
		amount("retained_earnings", i.RetainedEarnings),
		amount("cash", i.Cash),
		amount("liabilities", i.Liabilities),
		amount("equity", i.Equity),
		amount("operating_cash_flow", i.OperatingCashFlow),
		amount("capex", i.Capex),
		amount("depreciation_amortization", i.DepreciationAmortization),
		amount("current_assets", i.CurrentAssets),
		amount("current_liabilities", i.CurrentLiabilities),
		amount("prior_revenue", i.PriorYearRevenue),
		amount("prior_operating_income", i.PriorYearOperatingIncome),
		amount("prior_net_income", i.PriorYearNetIncome),
		amount("prior_prior_revenue", i.PriorPriorYearRevenue),
		amount("prior_prior_operating_income", i.PriorPriorYearOperatingIncome),
		amount("prior_prior_net_income", i.PriorPriorYearNetIncome),
		metric("debt_ratio", d.DebtRatio),
		metric("current_ratio", d.CurrentRatio),
		metric("roe", d.ROE),
		{Name: "fcf", Value: d.FreeCashFlow.Value.String()},
		{Name: "ebitda", Value: d.EBITDA.Value.String()},
		metric("revenue_growth", d.RevenueGrowth),
		metric("operating_income_growth", d.OperatingIncomeGrowth),
		metric("net_income_growth", d.NetIncomeGrowth),
		metric("prior_revenue_growth", d.PriorRevenueGrowth),
		metric("prior_operating_income_growth", d.PriorOperatingIncomeGrowth),
		metric("prior_net_income_growth", d.PriorNetIncomeGrowth),
		metric("price_position_52w", d.PricePosition52w),
		metric("ma5_gap", d.MA5Gap),
		metric("ma20_gap", d.MA20Gap),
		{Name: "annualized_revenue", Value: d.AnnualizedRevenue.Value.Round(0).String()},
		{Name: "annualized_operating_income", Value: d.AnnualizedOperatingIncome.Value.Round(0).String()},
		{Name: "annualized_net_income", Value: d.AnnualizedNetIncome.Value.Round(0).String()},
	}
}

// Dataset is the ordered output of one collection run.
type Dataset struct {
	RunID   string
	Day     string
	Rows    []CollectionResult
	Dropped []string
}

// SortBy orders rows by the position of their security in order. Unknown ids go last.
func (d *Dataset) SortBy(order []string) {
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	rank := func(id string) int {
		if p, ok := pos[id]; ok {
			return p
		}
		return len(order)
	}
	sort.SliceStable(d.Rows, func(a, b int) bool {
		return rank(d.Rows[a].Security.ID) < rank(d.Rows[b].Security.ID)
	})
	sort.SliceStable(d.Dropped, func(a, b int) bool {
		return rank(d.Dropped[a]) < rank(d.Dropped[b])
	})
}
