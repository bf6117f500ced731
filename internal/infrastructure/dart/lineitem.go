package dart

import (
	"strings"

	"github.com/shopspring/decimal"

	"FinanceCollector/internal/domain"
)

// lineItem validates one statement row. Sub-annual income statement rows carry
// both a three-month and a cumulative column; the cumulative one is used so
// every period reads from January.
func (r statementRow) lineItem(period domain.ReportPeriod) domain.LineItem {
	section := domain.ParseSection(r.StatementDiv)
	item := domain.LineItem{
		Tag:        strings.TrimSpace(r.AccountID),
		Label:      strings.TrimSpace(r.AccountName),
		Section:    section,
		Current:    domain.FirstKnown(parseAmount(r.Current), parseAmount(r.CurrentAdded)),
		Prior:      domain.PriorAmounts{Standard: parseAmount(r.Prior), Cumulative: parseAmount(r.PriorQuarter), Added: parseAmount(r.PriorAdded)},
		PriorPrior: parseAmount(r.PriorPrior),
	}

	flow := section == domain.SectionIncomeStatement || section == domain.SectionComprehensiveIncome
	if flow && period != domain.PeriodAnnual {
		item.Current = domain.FirstKnown(parseAmount(r.CurrentAdded), parseAmount(r.Current))
		// Only first-quarter three-month columns are cumulative. Later periods
		// without a cumulative prior column keep the prior unknown.
		item.Prior = domain.PriorAmounts{Standard: parseAmount(r.PriorAdded)}
		if period == domain.PeriodQ1 {
			item.Prior.Cumulative = parseAmount(r.PriorQuarter)
			item.Prior.Added = parseAmount(r.Prior)
		}
	}

	if item.Tag == "-표준계정코드 미사용-" {
		item.Tag = ""
	}
	return item
}

// parseAmount reads "1,234", "-1234" or "(1,234)". Blank and "-" are unknown.
func parseAmount(raw string) decimal.NullDecimal {
	s := strings.TrimSpace(raw)
	if s == "" || s == "-" {
		return decimal.NullDecimal{}
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	if negative {
		d = d.Neg()
	}
	return domain.Known(d)
}
