package portal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"

	"FinanceCollector/internal/domain"
)

const mainPage = `<html><head><meta charset="euc-kr"></head><body>
<div class="wrap_company"><h2><a href="#">삼성전자</a></h2></div>
<div class="section trade_compare"><h4 class="h_sub sub_tit7"><em><a href="#">반도체와반도체장비</a></em></h4></div>
<table summary="시가총액 정보">
  <tr><th>시가총액</th><td><em>423조 1,234</em>억원</td></tr>
  <tr><th>시가총액순위</th><td>코스피 1위</td></tr>
  <tr><th>상장주식수</th><td><em>5,969,782,550</em></td></tr>
</table>
<table summary="외국인한도주식수 정보">
  <tr><th>외국인한도주식수(A)</th><td><em>5,969,782,550</em></td></tr>
  <tr><th>외국인보유주식수(B)</th><td><em>2,984,891,275</em></td></tr>
  <tr><th>외국인소진율(B/A)</th><td><em>50.00%</em></td></tr>
</table>
<table summary="투자의견 정보">
  <tr><th>투자의견 l 목표주가</th><td><em>4.00</em>매수 <span>l</span> <em>96,500</em></td></tr>
  <tr><th>52주최고 l 최저</th><td><em>88,800</em> <span>l</span> <em>49,900</em></td></tr>
</table>
<table class="per_table">
  <tr><th>PER l EPS(2024.12)</th><td><em>12.34</em>배 l <em>4,950</em>원</td></tr>
  <tr><th>추정PER l EPS</th><td><em>9.10</em>배 l <em>6,700</em>원</td></tr>
  <tr><th>PBR l BPS (2024.12)</th><td><em>1.10</em>배 l <em>57,930</em>원</td></tr>
  <tr><th>배당수익률</th><td><em id="_dvr">2.40</em>%</td></tr>
</table>
<table summary="동일업종 PER 정보">
  <tr><th>동일업종 PER</th><td><em>15.80</em>배</td></tr>
  <tr><th>동일업종 등락률</th><td><em>-1.20%</em></td></tr>
</table>
<div class="section cop_analysis"><table summary="기업실적분석에 관한표이며">
  <thead>
    <tr><th>주요재무정보</th><th colspan="4">최근 연간 실적</th></tr>
    <tr><th>2022.12</th><th>2023.12</th><th>2024.12</th><th>2025.12(E)</th></tr>
  </thead>
  <tbody>
    <tr><th>매출액</th><td>3,022,314</td><td>2,589,355</td><td>3,008,709</td><td>3,264,000</td></tr>
    <tr><th>영업이익</th><td>433,766</td><td>65,670</td><td>327,260</td><td>401,234</td></tr>
    <tr><th>부채비율</th><td>26.41</td><td>25.36</td><td>27.93</td><td>-</td></tr>
    <tr><th>유동비율</th><td>278.86</td><td>258.77</td><td>-</td><td>240.00</td></tr>
  </tbody>
</table></div>
</body></html>`

const flowsPage = `<html><body>
<table class="type2"><tr><th>날짜</th><th>종가</th><th>전일비</th><th>등락률</th><th>거래량</th><th>기관</th><th>외국인</th><th>보유주수</th><th>보유율</th></tr>
%ROWS%
</table></body></html>`

func flowRows(days int) string {
	rows := ""
	for i := 0; i < days; i++ {
		rows += `<tr onmouseover="mouseOver(this)"><td>2025.03.14</td><td>71,000</td><td>500</td><td>+0.7%</td><td>12,345</td><td>+1,000</td><td>-2,000</td><td>1</td><td>50%</td></tr>`
	}
	return rows
}

const pricesPage = `<html><body>
<table class="type2"><tr><th>날짜</th><th>종가</th><th>전일비</th><th>시가</th><th>고가</th><th>저가</th><th>거래량</th></tr>
%ROWS%
</table></body></html>`

// priceRows renders closes newest first: 1,000, 1,010, 1,020 and so on.
func priceRows(days int) string {
	rows := ""
	for i := 0; i < days; i++ {
		rows += fmt.Sprintf(`<tr onmouseover="mouseOver(this)"><td>2025.03.%02d</td><td>%s</td><td>10</td><td>1</td><td>1</td><td>1</td><td>100</td></tr>`,
			14-i%14, humanize(1000+i*10))
	}
	return rows
}

func humanize(v int) string {
	if v < 1000 {
		return fmt.Sprint(v)
	}
	return fmt.Sprintf("%d,%03d", v/1000, v%1000)
}

func newPortal(t *testing.T, flows string, flowStatus int) *httptest.Server {
	t.Helper()
	encoded, err := korean.EUCKR.NewEncoder().String(mainPage)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/item/main.naver", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "005930", r.URL.Query().Get("code"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		_, _ = io.WriteString(w, encoded)
	})
	mux.HandleFunc("/item/sise_day.naver", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		_, _ = io.WriteString(w, strings.Replace(pricesPage, "%ROWS%", priceRows(25), 1))
	})
	mux.HandleFunc("/item/frgn.naver", func(w http.ResponseWriter, r *http.Request) {
		if flowStatus != http.StatusOK {
			w.WriteHeader(flowStatus)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, flows)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScrapeMainAndFlows(t *testing.T) {
	flows := strings.Replace(flowsPage, "%ROWS%", flowRows(25), 1)
	srv := newPortal(t, flows, http.StatusOK)
	scraper := NewScraper(srv.URL, nil, 0, quietLogger())

	snap, err := scraper.Scrape(context.Background(), "005930")
	require.NoError(t, err)

	assert.Equal(t, "삼성전자", snap.Name)
	assert.Equal(t, "반도체와반도체장비", snap.Sector)
	assert.Equal(t, "423123400000000", snap.MarketCap.Decimal.String())
	assert.Equal(t, "5969782550", snap.OutstandingShares.Decimal.String())
	assert.Equal(t, "50", snap.ForeignOwnershipRatio.Decimal.String())
	assert.Equal(t, "50", snap.ForeignExhaustionRatio.Decimal.String())
	assert.Equal(t, "매수", snap.Opinion)
	assert.Equal(t, "4", snap.OpinionScore.Decimal.String())
	assert.Equal(t, "96500", snap.TargetPrice.Decimal.String())
	assert.Equal(t, "88800", snap.High52w.Decimal.String())
	assert.Equal(t, "49900", snap.Low52w.Decimal.String())
	assert.Equal(t, "12.34", snap.Fundamentals.PER.Decimal.String())
	assert.Equal(t, "4950", snap.Fundamentals.EPS.Decimal.String())
	assert.Equal(t, "1.1", snap.Fundamentals.PBR.Decimal.String())
	assert.Equal(t, "57930", snap.Fundamentals.BPS.Decimal.String())
	assert.Equal(t, "2.4", snap.Fundamentals.DividendYield.Decimal.String())
	assert.Equal(t, "15.8", snap.SectorPER.Decimal.String())
	assert.Equal(t, "401234", snap.NextYearOperatingIncome.Decimal.String())
	assert.Equal(t, "27.93", snap.DebtRatio.Decimal.String())
	assert.Equal(t, "258.77", snap.CurrentRatio.Decimal.String())

	assert.Equal(t, "-10000", snap.ForeignNet5d.Decimal.String())
	assert.Equal(t, "-40000", snap.ForeignNet20d.Decimal.String())
	assert.Equal(t, "5000", snap.InstitutionNet5d.Decimal.String())
	assert.Equal(t, "20000", snap.InstitutionNet20d.Decimal.String())

	assert.Equal(t, "1000", snap.LastClose.Decimal.String())
	assert.Equal(t, "1020", snap.MA5.Decimal.String())
	assert.Equal(t, "1095", snap.MA20.Decimal.String())
}

func TestScrapeToleratesMissingFlowsPage(t *testing.T) {
	srv := newPortal(t, "", http.StatusInternalServerError)
	scraper := NewScraper(srv.URL, nil, 0, quietLogger())

	snap, err := scraper.Scrape(context.Background(), "005930")
	require.NoError(t, err)
	assert.Equal(t, "삼성전자", snap.Name)
	assert.False(t, snap.ForeignNet5d.Valid)
	assert.False(t, snap.InstitutionNet20d.Valid)
	assert.True(t, snap.MA5.Valid)
}

func TestScrapeMainPageFailureIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewScraper(srv.URL, nil, 0, quietLogger()).Scrape(context.Background(), "005930")
	assert.Error(t, err)
}

func TestScrapeEmptyPageLeavesFieldsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html><body><p>점검중</p></body></html>")
	}))
	defer srv.Close()

	snap, err := NewScraper(srv.URL, nil, 0, quietLogger()).Scrape(context.Background(), "005930")
	require.NoError(t, err)
	assert.Empty(t, snap.Name)
	assert.False(t, snap.MarketCap.Valid)
	assert.False(t, snap.Fundamentals.PER.Valid)
	assert.False(t, snap.NextYearOperatingIncome.Valid)
	assert.False(t, snap.ForeignNet5d.Valid)
	assert.False(t, snap.MA20.Valid)
}

func TestParseDailyPricesShortHistory(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(strings.Replace(pricesPage, "%ROWS%", priceRows(3), 1)))
	require.NoError(t, err)

	var snap domain.PortalSnapshot
	parseDailyPricesPage(doc, &snap)
	assert.Equal(t, "1000", snap.LastClose.Decimal.String())
	assert.False(t, snap.MA5.Valid)
	assert.Equal(t, "1010", snap.MA20.Decimal.String())
}

func TestParseKoreanAmount(t *testing.T) {
	assert.Equal(t, "424100000000", parseKoreanAmount("4,241억원").Decimal.String())
	assert.Equal(t, "2000000000000", parseKoreanAmount("2조원").Decimal.String())
	assert.Equal(t, "12345", parseKoreanAmount("12,345").Decimal.String())
	assert.False(t, parseKoreanAmount("N/A").Valid)
}
