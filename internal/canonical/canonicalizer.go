package canonical

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"FinanceCollector/internal/domain"
)

// Rank orders how strongly an item matched a rule.
type Rank int

const (
	RankNone Rank = iota
	RankLabelFragment
	RankLabel
	RankTag
)

// Canonicalizer maps reported line items onto FilingLineItems.
type Canonicalizer struct {
	rules []Rule
}

// New builds a canonicalizer over rules; nil selects DefaultRules.
func New(rules []Rule) *Canonicalizer {
	if rules == nil {
		rules = DefaultRules()
	}
	normalized := make([]Rule, len(rules))
	for i, r := range rules {
		r.Labels = normalizeAll(r.Labels)
		r.LabelFragments = normalizeAll(r.LabelFragments)
		r.Exclusions = normalizeAll(r.Exclusions)
		normalized[i] = r
	}
	return &Canonicalizer{rules: normalized}
}

type best struct {
	rank       Rank
	current    decimal.NullDecimal
	prior      decimal.NullDecimal
	priorPrior decimal.NullDecimal
}

// offer keeps the candidate only when it ranks strictly above the held one.
func (b *best) offer(rank Rank, item domain.LineItem) {
	if rank <= b.rank {
		return
	}
	b.rank = rank
	b.current = item.Current
	b.prior = item.Prior.Resolve()
	b.priorPrior = item.PriorPrior
}

type sum struct {
	tagged  decimal.NullDecimal
	labeled decimal.NullDecimal
}

func (s *sum) add(rank Rank, value decimal.Decimal) {
	target := &s.labeled
	if rank == RankTag {
		target = &s.tagged
	}
	*target = domain.Known(domain.OrZero(*target).Add(value.Abs()))
}

func (s sum) value() decimal.NullDecimal {
	return domain.FirstKnown(s.tagged, s.labeled)
}

// Canonicalize is deterministic for a given input order. Items whose current amount
// is unknown never match. A filing without a revenue-like item yields an all-unknown record.
func (c *Canonicalizer) Canonicalize(items []domain.LineItem) domain.FilingLineItems {
	var (
		bests [fieldCount]best
		sums  [fieldCount]sum
	)

	for _, item := range items {
		if !item.Current.Valid {
			continue
		}
		label := normalize(item.Label)
		for _, rule := range c.rules {
			rank := rule.match(item.Tag, label, item.Section)
			if rank == RankNone {
				continue
			}
			if rule.Accumulate {
				sums[rule.Field].add(rank, item.Current.Decimal)
				continue
			}
			bests[rule.Field].offer(rank, item)
		}
	}

	pick := func(f Field) decimal.NullDecimal {
		for _, rule := range c.rules {
			if rule.Field == f && rule.Accumulate {
				return sums[f].value()
			}
		}
		return bests[f].current
	}

	revenue := bests[FieldRevenue]
	if !revenue.current.Valid {
		return domain.FilingLineItems{}
	}
	operating := bests[FieldOperatingIncome]
	net := bests[FieldNetIncome]

	return domain.FilingLineItems{
		Revenue:                  revenue.current,
		OperatingIncome:          operating.current,
		NetIncome:                net.current,
		RetainedEarnings:         pick(FieldRetainedEarnings),
		Cash:                     pick(FieldCash),
		Liabilities:              pick(FieldLiabilities),
		Equity:                   pick(FieldEquity),
		OperatingCashFlow:        pick(FieldOperatingCashFlow),
		Capex:                    pick(FieldCapex),
		DepreciationAmortization: pick(FieldDepreciationAmortization),
		CurrentAssets:            pick(FieldCurrentAssets),
		CurrentLiabilities:       pick(FieldCurrentLiabilities),

		PriorYearRevenue:         revenue.prior,
		PriorYearOperatingIncome: operating.prior,
		PriorYearNetIncome:       net.prior,

		PriorPriorYearRevenue:         revenue.priorPrior,
		PriorPriorYearOperatingIncome: operating.priorPrior,
		PriorPriorYearNetIncome:       net.priorPrior,
	}
}

// Usable reports whether a canonical record carries a revenue-like item.
func Usable(items domain.FilingLineItems) bool {
	return items.Revenue.Valid
}

func (r Rule) match(tag, label string, section domain.Section) Rank {
	if !r.inSection(section) {
		return RankNone
	}
	if tag != "" {
		for _, t := range r.Tags {
			if tag == t {
				return RankTag
			}
		}
		for _, t := range r.TagFragments {
			if strings.Contains(tag, t) && !containsAny(tag, r.TagExclusions) {
				return RankTag
			}
		}
	}
	if label == "" {
		return RankNone
	}
	for _, l := range r.Labels {
		if label == l {
			return RankLabel
		}
	}
	for _, f := range r.LabelFragments {
		if strings.Contains(label, f) && !r.excluded(label) {
			return RankLabelFragment
		}
	}
	return RankNone
}

func (r Rule) inSection(section domain.Section) bool {
	if len(r.Sections) == 0 {
		return true
	}
	for _, s := range r.Sections {
		if s == section {
			return true
		}
	}
	return false
}

func (r Rule) excluded(label string) bool {
	return containsAny(label, r.Exclusions)
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

func normalize(label string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, label)
}

func normalizeAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = normalize(v)
	}
	return out
}
