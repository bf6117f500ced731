package domain

import "github.com/shopspring/decimal"

// Quote is what the market provider returns for one security and trading day.
type Quote struct {
	CurrentPrice decimal.NullDecimal
	PrevPrice    decimal.NullDecimal
	High52w      decimal.NullDecimal
	Low52w       decimal.NullDecimal
	Fundamentals Fundamentals
}

// PortalSnapshot is the best-effort data scraped from the finance portal.
// Fields the page did not carry stay unknown.
type PortalSnapshot struct {
	Name                    string
	Sector                  string
	MarketCap               decimal.NullDecimal
	OutstandingShares       decimal.NullDecimal
	Opinion                 string
	OpinionScore            decimal.NullDecimal
	TargetPrice             decimal.NullDecimal
	High52w                 decimal.NullDecimal
	Low52w                  decimal.NullDecimal
	Fundamentals            Fundamentals
	SectorPER               decimal.NullDecimal
	NextYearOperatingIncome decimal.NullDecimal
	DebtRatio               decimal.NullDecimal
	CurrentRatio            decimal.NullDecimal
	ForeignOwnershipRatio   decimal.NullDecimal
	ForeignExhaustionRatio  decimal.NullDecimal
	ForeignNet5d            decimal.NullDecimal
	ForeignNet20d           decimal.NullDecimal
	InstitutionNet5d        decimal.NullDecimal
	InstitutionNet20d       decimal.NullDecimal
	// LastClose, MA5 and MA20 come from the daily price page.
	LastClose decimal.NullDecimal
	MA5       decimal.NullDecimal
	MA20      decimal.NullDecimal
}

// MarketSnapshot merges provider, universe and portal figures for one run.
// It is refreshed every run and never cached across days.
type MarketSnapshot struct {
	Sector                  string
	MarketCap               decimal.NullDecimal
	CurrentPrice            decimal.NullDecimal
	PrevPrice               decimal.NullDecimal
	High52w                 decimal.NullDecimal
	Low52w                  decimal.NullDecimal
	PER                     decimal.NullDecimal
	PBR                     decimal.NullDecimal
	EPS                     decimal.NullDecimal
	BPS                     decimal.NullDecimal
	DividendYield           decimal.NullDecimal
	SectorAvgPER            decimal.NullDecimal
	SectorAvgPBR            decimal.NullDecimal
	SectorPER               decimal.NullDecimal
	Opinion                 string
	TargetPrice             decimal.NullDecimal
	NextYearOperatingIncome decimal.NullDecimal
	DebtRatio               decimal.NullDecimal
	ForeignOwnershipRatio   decimal.NullDecimal
	ForeignNet5d            decimal.NullDecimal
	ForeignNet20d           decimal.NullDecimal
	InstitutionNet5d        decimal.NullDecimal
	InstitutionNet20d       decimal.NullDecimal
	LastClose               decimal.NullDecimal
	MA5                     decimal.NullDecimal
	MA20                    decimal.NullDecimal
}

// SectorAverage carries the mean PER/PBR of one sector.
type SectorAverage struct {
	PER decimal.NullDecimal
	PBR decimal.NullDecimal
}

// MergeSnapshot combines the three market sources. Provider values win over the
// universe listing, which wins over the portal.
func MergeSnapshot(listing Listing, quote Quote, portal PortalSnapshot, avg SectorAverage) MarketSnapshot {
	sector := listing.Sector
	if sector == "" {
		sector = portal.Sector
	}

	return MarketSnapshot{
		Sector:                  sector,
		MarketCap:               FirstKnown(listing.MarketCap, portal.MarketCap),
		CurrentPrice:            quote.CurrentPrice,
		PrevPrice:               quote.PrevPrice,
		High52w:                 FirstKnown(quote.High52w, portal.High52w),
		Low52w:                  FirstKnown(quote.Low52w, portal.Low52w),
		PER:                     FirstKnown(quote.Fundamentals.PER, listing.Fundamentals.PER, portal.Fundamentals.PER),
		PBR:                     FirstKnown(quote.Fundamentals.PBR, listing.Fundamentals.PBR, portal.Fundamentals.PBR),
		EPS:                     FirstKnown(quote.Fundamentals.EPS, listing.Fundamentals.EPS, portal.Fundamentals.EPS),
		BPS:                     FirstKnown(quote.Fundamentals.BPS, listing.Fundamentals.BPS, portal.Fundamentals.BPS),
		DividendYield:           FirstKnown(quote.Fundamentals.DividendYield, listing.Fundamentals.DividendYield, portal.Fundamentals.DividendYield),
		SectorAvgPER:            avg.PER,
		SectorAvgPBR:            avg.PBR,
		SectorPER:               portal.SectorPER,
		Opinion:                 portal.Opinion,
		TargetPrice:             portal.TargetPrice,
		NextYearOperatingIncome: portal.NextYearOperatingIncome,
		DebtRatio:               portal.DebtRatio,
		ForeignOwnershipRatio:   portal.ForeignOwnershipRatio,
		ForeignNet5d:            portal.ForeignNet5d,
		ForeignNet20d:           portal.ForeignNet20d,
		InstitutionNet5d:        portal.InstitutionNet5d,
		InstitutionNet20d:       portal.InstitutionNet20d,
		LastClose:               portal.LastClose,
		MA5:                     portal.MA5,
		MA20:                    portal.MA20,
	}
}

// SectorAverages computes mean PER and PBR per sector over listings where both are positive.
func SectorAverages(listings []Listing) map[string]SectorAverage {
	type acc struct {
		per, pbr decimal.Decimal
		n        int64
	}
	sums := map[string]*acc{}
	for _, l := range listings {
		if l.Sector == "" || !Positive(l.Fundamentals.PER) || !Positive(l.Fundamentals.PBR) {
			continue
		}
		a, ok := sums[l.Sector]
		if !ok {
			a = &acc{}
			sums[l.Sector] = a
		}
		a.per = a.per.Add(l.Fundamentals.PER.Decimal)
		a.pbr = a.pbr.Add(l.Fundamentals.PBR.Decimal)
		a.n++
	}

	out := make(map[string]SectorAverage, len(sums))
	for sector, a := range sums {
		n := decimal.NewFromInt(a.n)
		out[sector] = SectorAverage{
			PER: Known(a.per.Div(n)),
			PBR: Known(a.pbr.Div(n)),
		}
	}
	return out
}
