package portal

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"FinanceCollector/internal/domain"
)

const (
	shortWindow = 5
	longWindow  = 20
	closeColumn = 1
)

// parseDailyPricesPage reads closing prices, newest first, and averages them.
// MA5 needs five closes; MA20 uses whatever is available up to twenty.
func parseDailyPricesPage(doc *goquery.Document, snap *domain.PortalSnapshot) {
	var closes []decimal.Decimal
	doc.Find("tr[onmouseover]").Each(func(_ int, row *goquery.Selection) {
		tds := row.Find("td")
		if tds.Length() <= closeColumn || len(closes) >= longWindow {
			return
		}
		price := firstNumber(tds.Eq(closeColumn).Text())
		if !domain.Positive(price) {
			return
		}
		closes = append(closes, price.Decimal)
	})

	if len(closes) == 0 {
		return
	}
	snap.LastClose = domain.Known(closes[0])
	if len(closes) >= shortWindow {
		snap.MA5 = domain.Known(mean(closes[:shortWindow]))
	}
	snap.MA20 = domain.Known(mean(closes))
}

func mean(values []decimal.Decimal) decimal.Decimal {
	var total decimal.Decimal
	for _, v := range values {
		total = total.Add(v)
	}
	return total.Div(decimal.NewFromInt(int64(len(values)))).Round(2)
}
