package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrFilingNotFound reports that no filing exists for a fiscal year and report period.
var ErrFilingNotFound = errors.New("filing not found")

// UnresolvedLabel is the data-basis of a security whose filing search was exhausted.
const UnresolvedLabel = "N/A"

// Section is the financial statement a line item was reported in.
type Section string

const (
	SectionBalanceSheet        Section = "BS"
	SectionIncomeStatement     Section = "IS"
	SectionComprehensiveIncome Section = "CIS"
	SectionCashFlow            Section = "CF"
	SectionEquityChanges       Section = "SCE"
	SectionOther               Section = "OTHER"
)

// ParseSection maps a statement division code onto a Section.
func ParseSection(code string) Section {
	switch Section(strings.ToUpper(strings.TrimSpace(code))) {
	case SectionBalanceSheet:
		return SectionBalanceSheet
	case SectionIncomeStatement:
		return SectionIncomeStatement
	case SectionComprehensiveIncome:
		return SectionComprehensiveIncome
	case SectionCashFlow:
		return SectionCashFlow
	case SectionEquityChanges:
		return SectionEquityChanges
	default:
		return SectionOther
	}
}

// ReportPeriod is a filing period code. Sub-annual periods are cumulative from January.
type ReportPeriod string

const (
	PeriodAnnual       ReportPeriod = "11011"
	PeriodQ3Cumulative ReportPeriod = "11014"
	PeriodHalfYear     ReportPeriod = "11012"
	PeriodQ1           ReportPeriod = "11013"
)

// FallbackPeriods is the order in which periods are tried within one fiscal year.
var FallbackPeriods = []ReportPeriod{PeriodAnnual, PeriodQ3Cumulative, PeriodHalfYear, PeriodQ1}

// Code returns the provider report code.
func (p ReportPeriod) Code() string {
	return string(p)
}

// Name is the human-facing period name used in report labels.
func (p ReportPeriod) Name() string {
	switch p {
	case PeriodAnnual:
		return "annual"
	case PeriodQ3Cumulative:
		return "Q3-cumulative"
	case PeriodHalfYear:
		return "H1-cumulative"
	case PeriodQ1:
		return "Q1"
	default:
		return string(p)
	}
}

// Months is the number of months covered by the cumulative period.
func (p ReportPeriod) Months() int {
	switch p {
	case PeriodAnnual:
		return 12
	case PeriodQ3Cumulative:
		return 9
	case PeriodHalfYear:
		return 6
	case PeriodQ1:
		return 3
	default:
		return 0
	}
}

// ReportLabel renders the data-basis of a filing, e.g. "2024 Q3-cumulative".
func ReportLabel(year int, period ReportPeriod) string {
	return fmt.Sprintf("%d %s", year, period.Name())
}

// PriorAmounts holds the alternate prior-period columns in fallback order.
type PriorAmounts struct {
	Standard   decimal.NullDecimal
	Cumulative decimal.NullDecimal
	Added      decimal.NullDecimal
}

// Resolve returns the first known prior-period amount.
func (p PriorAmounts) Resolve() decimal.NullDecimal {
	return FirstKnown(p.Standard, p.Cumulative, p.Added)
}

// LineItem is one reported account of a filing, validated at the ingestion boundary.
type LineItem struct {
	Tag        string
	Label      string
	Section    Section
	Current    decimal.NullDecimal
	Prior      PriorAmounts
	PriorPrior decimal.NullDecimal
}

// FilingLineItems is the canonical record of one filing.
// Every amount stays unknown until a source explicitly populated it.
type FilingLineItems struct {
	Revenue                  decimal.NullDecimal `json:"revenue"`
	OperatingIncome          decimal.NullDecimal `json:"operatingIncome"`
	NetIncome                decimal.NullDecimal `json:"netIncome"`
	RetainedEarnings         decimal.NullDecimal `json:"retainedEarnings"`
	Cash                     decimal.NullDecimal `json:"cash"`
	Liabilities              decimal.NullDecimal `json:"liabilities"`
	Equity                   decimal.NullDecimal `json:"equity"`
	OperatingCashFlow        decimal.NullDecimal `json:"operatingCashFlow"`
	Capex                    decimal.NullDecimal `json:"capex"`
	DepreciationAmortization decimal.NullDecimal `json:"depreciationAmortization"`
	CurrentAssets            decimal.NullDecimal `json:"currentAssets"`
	CurrentLiabilities       decimal.NullDecimal `json:"currentLiabilities"`

	PriorYearRevenue         decimal.NullDecimal `json:"priorYearRevenue"`
	PriorYearOperatingIncome decimal.NullDecimal `json:"priorYearOperatingIncome"`
	PriorYearNetIncome       decimal.NullDecimal `json:"priorYearNetIncome"`

	PriorPriorYearRevenue         decimal.NullDecimal `json:"priorPriorYearRevenue"`
	PriorPriorYearOperatingIncome decimal.NullDecimal `json:"priorPriorYearOperatingIncome"`
	PriorPriorYearNetIncome       decimal.NullDecimal `json:"priorPriorYearNetIncome"`

	FiscalYear  int          `json:"fiscalYear"`
	Period      ReportPeriod `json:"period"`
	ReportLabel string       `json:"reportLabel"`
}

// Unresolved is the record returned when no usable filing was found.
func Unresolved() FilingLineItems {
	return FilingLineItems{ReportLabel: UnresolvedLabel}
}

// Resolved reports whether the record is backed by a usable filing.
func (f FilingLineItems) Resolved() bool {
	return f.Period != "" && f.ReportLabel != "" && f.ReportLabel != UnresolvedLabel
}

// DataBasis is the label surfaced to consumers for the period underlying the figures.
func (f FilingLineItems) DataBasis() string {
	if !f.Resolved() {
		return UnresolvedLabel
	}
	return f.ReportLabel
}
