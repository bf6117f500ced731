package portal

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"FinanceCollector/internal/domain"
)

var (
	numberExpr  = regexp.MustCompile(`-?[\d,]+(?:\.\d+)?`)
	hangulExpr  = regexp.MustCompile(`[가-힣]+`)
	joExpr      = regexp.MustCompile(`([\d,]+)조`)
	eokExpr     = regexp.MustCompile(`([\d,]+)억`)
	signedDigit = regexp.MustCompile(`[^0-9\-]`)

	hundredMillion = decimal.NewFromInt(100_000_000)
	trillion       = decimal.NewFromInt(1_000_000_000_000)
	hundred        = decimal.NewFromInt(100)
)

func parseMainPage(doc *goquery.Document) domain.PortalSnapshot {
	var snap domain.PortalSnapshot

	snap.Name = compact(doc.Find("div.wrap_company h2 a").First().Text())
	snap.Sector = strings.TrimSpace(doc.Find("div.trade_compare h4 em a").First().Text())

	var foreignOwned decimal.NullDecimal

	eachSummaryRow(doc, "시가총액 정보", func(th, td string) {
		switch {
		case strings.Contains(th, "시가총액") && !strings.Contains(th, "순위"):
			snap.MarketCap = parseKoreanAmount(td)
		case strings.Contains(th, "상장주식수"):
			snap.OutstandingShares = firstNumber(td)
		}
	})

	eachSummaryRow(doc, "외국인한도주식수 정보", func(th, td string) {
		switch {
		case strings.Contains(th, "외국인보유주식수"):
			foreignOwned = firstNumber(td)
		case strings.Contains(th, "소진율"):
			snap.ForeignExhaustionRatio = firstNumber(td)
		}
	})
	if domain.Positive(foreignOwned) && domain.Positive(snap.OutstandingShares) {
		ratio := foreignOwned.Decimal.Div(snap.OutstandingShares.Decimal).Mul(hundred).Round(2)
		snap.ForeignOwnershipRatio = domain.Known(ratio)
	}

	eachSummaryRow(doc, "투자의견 정보", func(th, td string) {
		switch {
		case strings.Contains(th, "투자의견") && strings.Contains(th, "목표주가"):
			parts := strings.SplitN(td, "l", 2)
			if len(parts) < 2 {
				return
			}
			snap.Opinion = hangulExpr.FindString(parts[0])
			snap.OpinionScore = firstNumber(parts[0])
			snap.TargetPrice = firstNumber(parts[1])
		case strings.Contains(th, "52주최고"):
			nums := numbers(td)
			if len(nums) >= 2 {
				snap.High52w = nums[0]
				snap.Low52w = nums[1]
			}
		}
	})

	doc.Find("table.per_table tr").Each(func(_ int, row *goquery.Selection) {
		th := compact(row.Find("th").First().Text())
		nums := numbers(compact(row.Find("td").First().Text()))
		if len(nums) < 2 || strings.Contains(th, "추정") {
			return
		}
		switch {
		case strings.Contains(th, "PER") && strings.Contains(th, "EPS"):
			snap.Fundamentals.PER = nums[0]
			snap.Fundamentals.EPS = nums[1]
		case strings.Contains(th, "PBR") && strings.Contains(th, "BPS"):
			snap.Fundamentals.PBR = nums[0]
			snap.Fundamentals.BPS = nums[1]
		}
	})

	eachSummaryRow(doc, "동일업종 PER 정보", func(th, td string) {
		if strings.Contains(th, "동일업종PER") {
			snap.SectorPER = firstNumber(td)
		}
	})

	if dvr := compact(doc.Find("em#_dvr").First().Text()); dvr != "" {
		snap.Fundamentals.DividendYield = firstNumber(dvr)
	}

	parseAnalysis(doc, &snap)

	return snap
}

// parseAnalysis reads the annual performance table: the first estimated column
// of operating income, and the latest reported debt and current ratios.
func parseAnalysis(doc *goquery.Document, snap *domain.PortalSnapshot) {
	table := doc.Find("div.cop_analysis table").First()
	if table.Length() == 0 {
		table = doc.Find("table").FilterFunction(func(_ int, s *goquery.Selection) bool {
			summary, _ := s.Attr("summary")
			return strings.Contains(summary, "기업실적분석") || strings.Contains(summary, "주요재무정보")
		}).First()
	}
	if table.Length() == 0 {
		return
	}

	var estimated []bool
	table.Find("thead tr").Eq(1).Find("th").Each(func(_ int, th *goquery.Selection) {
		estimated = append(estimated, strings.Contains(compact(th.Text()), "(E)"))
	})

	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		th := compact(row.Find("th").First().Text())
		var cells []decimal.NullDecimal
		row.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, firstNumber(compact(td.Text())))
		})

		switch {
		case th == "영업이익" && !snap.NextYearOperatingIncome.Valid:
			for i, cell := range cells {
				if i < len(estimated) && estimated[i] && cell.Valid {
					snap.NextYearOperatingIncome = cell
					return
				}
			}
		case strings.Contains(th, "부채비율"):
			snap.DebtRatio = lastReported(cells, estimated)
		case strings.Contains(th, "유동비율"):
			snap.CurrentRatio = lastReported(cells, estimated)
		}
	})
}

func lastReported(cells []decimal.NullDecimal, estimated []bool) decimal.NullDecimal {
	for i := len(cells) - 1; i >= 0; i-- {
		if i < len(estimated) && estimated[i] {
			continue
		}
		if cells[i].Valid {
			return cells[i]
		}
	}
	return decimal.NullDecimal{}
}

// eachSummaryRow visits th/td pairs of the first table whose summary contains marker.
func eachSummaryRow(doc *goquery.Document, marker string, fn func(th, td string)) {
	table := doc.Find("table").FilterFunction(func(_ int, s *goquery.Selection) bool {
		summary, _ := s.Attr("summary")
		return strings.Contains(summary, marker)
	}).First()

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		th := row.Find("th").First()
		td := row.Find("td").First()
		if th.Length() == 0 || td.Length() == 0 {
			return
		}
		fn(compact(th.Text()), compact(td.Text()))
	})
}

func compact(text string) string {
	return strings.Join(strings.Fields(text), "")
}

func numbers(text string) []decimal.NullDecimal {
	matches := numberExpr.FindAllString(text, -1)
	out := make([]decimal.NullDecimal, 0, len(matches))
	for _, m := range matches {
		if d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", "")); err == nil {
			out = append(out, domain.Known(d))
		}
	}
	return out
}

func firstNumber(text string) decimal.NullDecimal {
	nums := numbers(text)
	if len(nums) == 0 {
		return decimal.NullDecimal{}
	}
	return nums[0]
}

// parseKoreanAmount converts "423조 1,234억원" or "4,241억원" to won.
func parseKoreanAmount(text string) decimal.NullDecimal {
	text = compact(text)
	var (
		total decimal.Decimal
		found bool
	)
	if m := joExpr.FindStringSubmatch(text); m != nil {
		if d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "")); err == nil {
			total = total.Add(d.Mul(trillion))
			found = true
		}
	}
	if m := eokExpr.FindStringSubmatch(text); m != nil {
		if d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "")); err == nil {
			total = total.Add(d.Mul(hundredMillion))
			found = true
		}
	}
	if !found {
		return firstNumber(text)
	}
	return domain.Known(total)
}

func parseSigned(text string) (decimal.Decimal, bool) {
	cleaned := signedDigit.ReplaceAllString(text, "")
	if cleaned == "" || cleaned == "-" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
