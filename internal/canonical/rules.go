package canonical

import "FinanceCollector/internal/domain"

// Field is one canonical line item of a filing.
type Field int

const (
	FieldRevenue Field = iota
	FieldOperatingIncome
	FieldNetIncome
	FieldRetainedEarnings
	FieldCash
	FieldLiabilities
	FieldEquity
	FieldOperatingCashFlow
	FieldCapex
	FieldDepreciationAmortization
	FieldCurrentAssets
	FieldCurrentLiabilities
	fieldCount
)

func (f Field) String() string {
	switch f {
	case FieldRevenue:
		return "revenue"
	case FieldOperatingIncome:
		return "operatingIncome"
	case FieldNetIncome:
		return "netIncome"
	case FieldRetainedEarnings:
		return "retainedEarnings"
	case FieldCash:
		return "cash"
	case FieldLiabilities:
		return "liabilities"
	case FieldEquity:
		return "equity"
	case FieldOperatingCashFlow:
		return "operatingCashFlow"
	case FieldCapex:
		return "capex"
	case FieldDepreciationAmortization:
		return "depreciationAmortization"
	case FieldCurrentAssets:
		return "currentAssets"
	case FieldCurrentLiabilities:
		return "currentLiabilities"
	default:
		return "unknown"
	}
}

// Rule describes how reported items are recognized as one canonical field.
// Labels are compared with all whitespace removed.
type Rule struct {
	Field Field
	// Sections limits matching to the listed statements. Empty means any statement.
	Sections []domain.Section
	// Tags are standardized account identifiers matched exactly.
	Tags []string
	// TagFragments are matched as substrings of the standardized identifier
	// unless the identifier contains one of TagExclusions.
	TagFragments  []string
	TagExclusions []string
	// Labels are curated synonyms matched exactly.
	Labels []string
	// LabelFragments are matched as substrings unless the label contains an exclusion.
	LabelFragments []string
	Exclusions     []string
	// Accumulate sums every match instead of keeping the best one.
	Accumulate bool
}

var (
	incomeSections  = []domain.Section{domain.SectionIncomeStatement, domain.SectionComprehensiveIncome}
	balanceSections = []domain.Section{domain.SectionBalanceSheet}
	cashSections    = []domain.Section{domain.SectionCashFlow}
)

// DefaultRules is the curated rule table for Korean IFRS filings.
func DefaultRules() []Rule {
	return []Rule{
		{
			Field:    FieldRevenue,
			Sections: incomeSections,
			Tags:     []string{"ifrs-full_Revenue", "ifrs_Revenue"},
			Labels:   []string{"매출액", "수익(매출액)", "영업수익", "매출"},
		},
		{
			Field:    FieldOperatingIncome,
			Sections: incomeSections,
			Tags:     []string{"dart_OperatingIncomeLoss"},
			Labels:   []string{"영업이익", "영업이익(손실)"},
		},
		{
			Field:    FieldNetIncome,
			Sections: incomeSections,
			Tags:     []string{"ifrs-full_ProfitLoss", "ifrs_ProfitLoss"},
			Labels:   []string{"당기순이익", "당기순이익(손실)", "분기순이익", "분기순이익(손실)", "반기순이익", "반기순이익(손실)"},
		},
		{
			Field:          FieldRetainedEarnings,
			Sections:       balanceSections,
			Tags:           []string{"ifrs-full_RetainedEarnings"},
			LabelFragments: []string{"이익잉여금"},
			Exclusions:     []string{"기타"},
		},
		{
			Field:          FieldCash,
			Sections:       balanceSections,
			Tags:           []string{"ifrs-full_CashAndCashEquivalents"},
			LabelFragments: []string{"현금및현금성자산"},
		},
		{
			Field:    FieldLiabilities,
			Sections: balanceSections,
			Tags:     []string{"ifrs-full_Liabilities"},
			Labels:   []string{"부채총계"},
		},
		{
			Field:    FieldEquity,
			Sections: balanceSections,
			Tags:     []string{"ifrs-full_Equity"},
			Labels:   []string{"자본총계"},
		},
		{
			Field:    FieldOperatingCashFlow,
			Sections: cashSections,
			Tags:     []string{"ifrs-full_CashFlowsFromUsedInOperatingActivities"},
			Labels:   []string{"영업활동현금흐름", "영업활동으로인한현금흐름"},
		},
		{
			Field:        FieldCapex,
			Sections:     cashSections,
			TagFragments: []string{"PurchaseOfPropertyPlantAndEquipment", "PurchaseOfIntangibleAssets"},
			Labels:       []string{"유형자산의취득", "무형자산의취득"},
			Accumulate:   true,
		},
		{
			Field:          FieldDepreciationAmortization,
			TagFragments:   []string{"Depreciation", "Amortisation"},
			TagExclusions:  []string{"Accumulated"},
			LabelFragments: []string{"감가상각"},
			Exclusions:     []string{"누계"},
		},
		{
			Field:    FieldCurrentAssets,
			Sections: balanceSections,
			Tags:     []string{"ifrs-full_CurrentAssets"},
			Labels:   []string{"유동자산"},
		},
		{
			Field:    FieldCurrentLiabilities,
			Sections: balanceSections,
			Tags:     []string{"ifrs-full_CurrentLiabilities"},
			Labels:   []string{"유동부채"},
		},
	}
}
