// Package report derives per-month, per-year and per-day statistics from a
// transaction sequence. Everything here is a pure function: no clock, no
// storage, no logging.
package report

import (
	"sort"

	"inventario/internal/core"
)

// Totals is one aggregation bucket. ARS figures sum totalValue; USD figures
// sum totalValue / exchangeRate over the rows that carry a rate, so a row
// without one counts toward ARS and contributes zero USD. The USD margin is
// USD sales minus USD purchases, not the ARS margin converted.
type Totals struct {
	PurchasesARS float64 `json:"purchasesARS"`
	SalesARS     float64 `json:"salesARS"`
	PurchasesUSD float64 `json:"purchasesUSD"`
	SalesUSD     float64 `json:"salesUSD"`
	Count        int     `json:"count"`
}

// MarginARS returns sales minus purchases in ARS.
func (t Totals) MarginARS() float64 { return t.SalesARS - t.PurchasesARS }

// MarginUSD returns sales minus purchases in USD.
func (t Totals) MarginUSD() float64 { return t.SalesUSD - t.PurchasesUSD }

func (t *Totals) add(tx core.Transaction) {
	t.Count++
	usd := tx.USDValue()
	switch tx.Type {
	case core.Purchase:
		t.PurchasesARS += tx.TotalValue
		t.PurchasesUSD += usd
	case core.Sale:
		t.SalesARS += tx.TotalValue
		t.SalesUSD += usd
	}
}

// GroupByMonth partitions by the YYYY-MM prefix of the date. Rows with a
// malformed date are skipped.
func GroupByMonth(transactions []core.Transaction) map[string]Totals {
	groups := map[string]Totals{}
	for _, tx := range transactions {
		key := core.MonthKey(tx.Date)
		if key == "" {
			continue
		}
		t := groups[key]
		t.add(tx)
		groups[key] = t
	}
	return groups
}

// GroupByYear partitions by the YYYY prefix of the date.
func GroupByYear(transactions []core.Transaction) map[string]Totals {
	groups := map[string]Totals{}
	for _, tx := range transactions {
		key := core.YearKey(tx.Date)
		if key == "" {
			continue
		}
		t := groups[key]
		t.add(tx)
		groups[key] = t
	}
	return groups
}

// Sum aggregates the whole sequence into one bucket.
func Sum(transactions []core.Transaction) Totals {
	var t Totals
	for _, tx := range transactions {
		t.add(tx)
	}
	return t
}

// SortByDateDesc returns a copy sorted by ISO date, most recent first. The
// zero-padded date format makes plain string comparison correct.
func SortByDateDesc(transactions []core.Transaction) []core.Transaction {
	out := append([]core.Transaction{}, transactions...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date > out[j].Date
	})
	return out
}

// MonthRow is one row of a per-year monthly breakdown.
type MonthRow struct {
	MonthKey string `json:"monthKey"` // YYYY-MM
	Totals
}

// MonthlyBreakdown returns twelve rows for the given year, January first.
// Months without transactions appear with zero totals.
func MonthlyBreakdown(transactions []core.Transaction, year string) []MonthRow {
	groups := GroupByMonth(transactions)

	rows := make([]MonthRow, 0, 12)
	for m := 1; m <= 12; m++ {
		key := year + "-" + twoDigits(m)
		rows = append(rows, MonthRow{MonthKey: key, Totals: groups[key]})
	}
	return rows
}

// YearRow is one row of the cross-year breakdown.
type YearRow struct {
	Year string `json:"year"`
	Totals
}

// YearlyBreakdown returns one row per year present in the sequence, union
// with currentYear, ascending.
func YearlyBreakdown(transactions []core.Transaction, currentYear string) []YearRow {
	groups := GroupByYear(transactions)
	if _, ok := groups[currentYear]; !ok && currentYear != "" {
		groups[currentYear] = Totals{}
	}

	years := make([]string, 0, len(groups))
	for y := range groups {
		years = append(years, y)
	}
	sort.Strings(years)

	rows := make([]YearRow, 0, len(years))
	for _, y := range years {
		rows = append(rows, YearRow{Year: y, Totals: groups[y]})
	}
	return rows
}

// DayRow carries a single day's totals for chart and spreadsheet consumption.
type DayRow struct {
	Date string `json:"date"` // YYYY-MM-DD
	Totals
}

// DailyBreakdown partitions by full date, ascending. Only days with at least
// one transaction appear.
func DailyBreakdown(transactions []core.Transaction) []DayRow {
	groups := map[string]Totals{}
	for _, tx := range transactions {
		if !core.ValidISODate(tx.Date) {
			continue
		}
		t := groups[tx.Date]
		t.add(tx)
		groups[tx.Date] = t
	}

	dates := make([]string, 0, len(groups))
	for d := range groups {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	rows := make([]DayRow, 0, len(dates))
	for _, d := range dates {
		rows = append(rows, DayRow{Date: d, Totals: groups[d]})
	}
	return rows
}

// AverageExchangeRate returns the mean of the exchange-rate snapshots carried
// by the sequence, ignoring rows without one. The second return reports
// whether any rate was present.
func AverageExchangeRate(transactions []core.Transaction) (float64, bool) {
	var sum float64
	var n int
	for _, tx := range transactions {
		if tx.ExchangeRate != nil && *tx.ExchangeRate > 0 {
			sum += *tx.ExchangeRate
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func twoDigits(n int) string {
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}
