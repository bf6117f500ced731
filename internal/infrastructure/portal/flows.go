package portal

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"FinanceCollector/internal/domain"
)

const (
	institutionColumn = 5
	foreignColumn     = 6
	minFlowColumns    = 9
)

// parseFlowsPage sums daily institution and foreign net purchases over the
// latest 5 and 20 trading days.
func parseFlowsPage(doc *goquery.Document, snap *domain.PortalSnapshot) {
	table := doc.Find("table.type2").FilterFunction(func(_ int, s *goquery.Selection) bool {
		text := compact(s.Text())
		return strings.Contains(text, "날짜") && strings.Contains(text, "기관")
	}).First()
	if table.Length() == 0 {
		return
	}

	var f5, f20, i5, i20 decimal.Decimal
	days := 0
	table.Find("tr[onmouseover]").Each(func(_ int, row *goquery.Selection) {
		tds := row.Find("td")
		if tds.Length() < minFlowColumns || days >= 20 {
			return
		}
		inst, okInst := parseSigned(tds.Eq(institutionColumn).Text())
		foreign, okForeign := parseSigned(tds.Eq(foreignColumn).Text())
		if !okInst && !okForeign {
			return
		}
		if days < 5 {
			f5 = f5.Add(foreign)
			i5 = i5.Add(inst)
		}
		f20 = f20.Add(foreign)
		i20 = i20.Add(inst)
		days++
	})

	if days == 0 {
		return
	}
	snap.ForeignNet5d = domain.Known(f5)
	snap.ForeignNet20d = domain.Known(f20)
	snap.InstitutionNet5d = domain.Known(i5)
	snap.InstitutionNet20d = domain.Known(i20)
}
