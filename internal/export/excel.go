// Package export renders the ledger and rainfall collections into
// spreadsheets: XLSX workbooks for download and an optional Google Sheets
// push.
package export

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"inventario/internal/core"
	"inventario/internal/rain"
	"inventario/internal/report"
)

var monthNames = [12]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// FormatMonthName renders a YYYY-MM key as "Enero 2024". Unparseable keys
// come back unchanged.
func FormatMonthName(monthKey string) string {
	year, month, err := core.MonthKeyParts(monthKey)
	if err != nil || month < 1 || month > 12 {
		return monthKey
	}
	return fmt.Sprintf("%s %d", monthNames[month-1], year)
}

// formatNumberAR renders a number with Argentine separators: dot for
// thousands, comma for decimals, no decimals for whole numbers.
func formatNumberAR(value float64, decimals int) string {
	if value == float64(int64(value)) {
		decimals = 0
	}
	s := strconv.FormatFloat(value, 'f', decimals, 64)

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, decPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if decPart != "" {
		out += "," + decPart
	}
	if neg {
		out = "-" + out
	}
	return out
}

const (
	fillHeader   = "E0E0E0"
	fillPurchase = "FFCDD2" // red, COMPRA rows
	fillSale     = "C8E6C9" // green, VENTA rows
	fillSalesCol = "4CAF50"
	fillBuysCol  = "F44336"
)

type styleSet struct {
	header     int
	purchase   int
	sale       int
	marginPos  int
	marginNeg  int
	title      int
	salesHead  int
	buysHead   int
	plainRight int
}

func newStyles(f *excelize.File) (styleSet, error) {
	var s styleSet
	var err error

	border := []excelize.Border{
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}
	fill := func(color string) excelize.Fill {
		return excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1}
	}

	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      fill(fillHeader),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    border,
	}); err != nil {
		return s, err
	}
	if s.purchase, err = f.NewStyle(&excelize.Style{Fill: fill(fillPurchase)}); err != nil {
		return s, err
	}
	if s.sale, err = f.NewStyle(&excelize.Style{Fill: fill(fillSale)}); err != nil {
		return s, err
	}
	if s.marginPos, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, Fill: fill(fillSale)}); err != nil {
		return s, err
	}
	if s.marginNeg, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, Fill: fill(fillPurchase)}); err != nil {
		return s, err
	}
	if s.title, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}); err != nil {
		return s, err
	}
	if s.salesHead, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"}, Fill: fill(fillSalesCol), Border: border,
	}); err != nil {
		return s, err
	}
	if s.buysHead, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"}, Fill: fill(fillBuysCol), Border: border,
	}); err != nil {
		return s, err
	}
	if s.plainRight, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "right", Vertical: "center"},
	}); err != nil {
		return s, err
	}
	return s, nil
}

// Workbook builds the ledger export: one transactions sheet and one summary
// sheet per month present in the input, plus a cross-month gross-margin
// sheet. An empty input yields a single "Sin datos" sheet.
func Workbook(transactions []core.Transaction) (*excelize.File, error) {
	f := excelize.NewFile()
	styles, err := newStyles(f)
	if err != nil {
		return nil, fmt.Errorf("build styles: %w", err)
	}

	byMonth := map[string][]core.Transaction{}
	for _, tx := range transactions {
		if key := core.MonthKey(tx.Date); key != "" {
			byMonth[key] = append(byMonth[key], tx)
		}
	}
	monthKeys := make([]string, 0, len(byMonth))
	for key := range byMonth {
		monthKeys = append(monthKeys, key)
	}
	sort.Strings(monthKeys)

	if len(monthKeys) == 0 {
		if _, err := f.NewSheet("Sin datos"); err != nil {
			return nil, err
		}
		if err := f.SetCellValue("Sin datos", "A1", "Sin transacciones"); err != nil {
			return nil, err
		}
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, err
		}
		return f, nil
	}

	type monthMargin struct {
		name   string
		margin float64
	}
	margins := make([]monthMargin, 0, len(monthKeys))

	for _, key := range monthKeys {
		monthTxs := byMonth[key]
		label := sheetLabel(key)

		if err := writeTransactionSheet(f, styles, "Trans "+label, monthTxs); err != nil {
			return nil, fmt.Errorf("month %s: %w", key, err)
		}
		if err := writeSummarySheet(f, styles, "Res "+label, monthTxs); err != nil {
			return nil, fmt.Errorf("month %s summary: %w", key, err)
		}

		margins = append(margins, monthMargin{
			name:   FormatMonthName(key),
			margin: report.Sum(monthTxs).MarginARS(),
		})
	}

	sheet := "Márgenes Mensuales"
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheet, "A1", "MÁRGENES BRUTOS MENSUALES (ARS)"); err != nil {
		return nil, err
	}
	f.SetCellStyle(sheet, "A1", "A1", styles.title)
	f.SetSheetRow(sheet, "A3", &[]any{"Mes", "Margen Bruto (ARS)", "Estado"})
	f.SetCellStyle(sheet, "A3", "C3", styles.header)
	for i, m := range margins {
		row := 4 + i
		state := "POSITIVO"
		rowStyle := styles.sale
		if m.margin < 0 {
			state = "NEGATIVO"
			rowStyle = styles.purchase
		}
		f.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &[]any{m.name, formatNumberAR(m.margin, 2), state})
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("C%d", row), rowStyle)
	}
	f.SetColWidth(sheet, "A", "B", 22)

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)
	return f, nil
}

// sheetLabel shortens a month key into "Ene 24", keeping names within the
// 31-char sheet limit.
func sheetLabel(monthKey string) string {
	name := FormatMonthName(monthKey)
	parts := strings.SplitN(name, " ", 2)
	short := parts[0]
	if len(short) > 3 {
		short = short[:3]
	}
	return short + " " + monthKey[2:4]
}

func writeTransactionSheet(f *excelize.File, styles styleSet, sheet string, transactions []core.Transaction) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []any{
		"Fecha", "Tipo", "Producto", "Cantidad", "Precio Unitario (ARS)",
		"Precio Unitario (USD)", "Valor Total (ARS)", "Valor Total (USD)",
		"Cotización USD", "Notas",
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	f.SetCellStyle(sheet, "A1", "J1", styles.header)

	for i, tx := range transactions {
		row := i + 2

		typeLabel := "VENTA"
		rowStyle := styles.sale
		if tx.Type == core.Purchase {
			typeLabel = "COMPRA"
			rowStyle = styles.purchase
		}

		unitPrice := 0.0
		if tx.UnitPrice != nil {
			unitPrice = *tx.UnitPrice
		}
		unitPriceUSD := "-"
		totalUSD := "-"
		rate := "-"
		if tx.ExchangeRate != nil && *tx.ExchangeRate > 0 {
			if tx.UnitPrice != nil {
				unitPriceUSD = formatNumberAR(unitPrice / *tx.ExchangeRate, 2)
			}
			totalUSD = formatNumberAR(tx.TotalValue / *tx.ExchangeRate, 2)
			rate = formatNumberAR(*tx.ExchangeRate, 2)
		}

		cells := []any{
			core.FormatDisplayDate(tx.Date),
			typeLabel,
			tx.ProductName,
			formatNumberAR(tx.Quantity, 0),
			formatNumberAR(unitPrice, 2),
			unitPriceUSD,
			formatNumberAR(tx.TotalValue, 2),
			totalUSD,
			rate,
			tx.Notes,
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &cells); err != nil {
			return err
		}
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("J%d", row), rowStyle)
	}

	f.SetColWidth(sheet, "A", "J", 16)
	f.SetColWidth(sheet, "C", "C", 25)
	return nil
}

func writeSummarySheet(f *excelize.File, styles styleSet, sheet string, transactions []core.Transaction) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	totals := report.Sum(transactions)
	avgRate, hasRate := report.AverageExchangeRate(transactions)
	divisor := avgRate
	if !hasRate || divisor <= 0 {
		divisor = 1
	}

	if err := f.SetCellValue(sheet, "A1", "RESUMEN MENSUAL"); err != nil {
		return err
	}
	f.SetCellStyle(sheet, "A1", "A1", styles.title)

	f.SetSheetRow(sheet, "A3", &[]any{"Concepto", "Valor (ARS)", "Valor (USD)"})
	f.SetCellStyle(sheet, "A3", "C3", styles.header)

	marginStyle := styles.marginPos
	if totals.MarginARS() < 0 {
		marginStyle = styles.marginNeg
	}

	f.SetSheetRow(sheet, "A4", &[]any{"Total Compras",
		formatNumberAR(totals.PurchasesARS, 2), formatNumberAR(totals.PurchasesARS/divisor, 2)})
	f.SetCellStyle(sheet, "A4", "C4", styles.purchase)
	f.SetSheetRow(sheet, "A5", &[]any{"Total Ventas",
		formatNumberAR(totals.SalesARS, 2), formatNumberAR(totals.SalesARS/divisor, 2)})
	f.SetCellStyle(sheet, "A5", "C5", styles.sale)
	f.SetSheetRow(sheet, "A6", &[]any{"MARGEN BRUTO",
		formatNumberAR(totals.MarginARS(), 2), formatNumberAR(totals.MarginARS()/divisor, 2)})
	f.SetCellStyle(sheet, "A6", "C6", marginStyle)
	f.SetSheetRow(sheet, "A7", &[]any{"Cantidad de Transacciones", strconv.Itoa(totals.Count)})
	f.SetSheetRow(sheet, "A8", &[]any{"Cotización USD Promedio", formatNumberAR(avgRate, 2)})
	f.SetCellStyle(sheet, "B7", "B8", styles.plainRight)

	if err := f.SetCellValue(sheet, "A11", "DATOS PARA GRÁFICO (ARS)"); err != nil {
		return err
	}
	f.SetSheetRow(sheet, "A12", &[]any{"Día", "Ventas (ARS)", "Compras (ARS)"})
	f.SetCellStyle(sheet, "A12", "A12", styles.header)
	f.SetCellStyle(sheet, "B12", "B12", styles.salesHead)
	f.SetCellStyle(sheet, "C12", "C12", styles.buysHead)

	for i, day := range report.DailyBreakdown(transactions) {
		row := 13 + i
		f.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &[]any{
			core.FormatDisplayDate(day.Date),
			formatNumberAR(day.SalesARS, 2),
			formatNumberAR(day.PurchasesARS, 2),
		})
		f.SetCellStyle(sheet, fmt.Sprintf("B%d", row), fmt.Sprintf("B%d", row), styles.sale)
		f.SetCellStyle(sheet, fmt.Sprintf("C%d", row), fmt.Sprintf("C%d", row), styles.purchase)
	}

	f.SetColWidth(sheet, "A", "A", 28)
	f.SetColWidth(sheet, "B", "C", 22)
	return nil
}

// RainWorkbook builds the rainfall export for one year: an entries sheet
// sorted by date and an annual per-month summary sheet.
func RainWorkbook(entries []rain.Entry, year string) (*excelize.File, error) {
	f := excelize.NewFile()
	styles, err := newStyles(f)
	if err != nil {
		return nil, fmt.Errorf("build styles: %w", err)
	}

	sorted := append([]rain.Entry{}, entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	if _, err := f.NewSheet("Entradas"); err != nil {
		return nil, err
	}
	f.SetSheetRow("Entradas", "A1", &[]any{"Fecha", "Precipitaciones (mm)"})
	f.SetCellStyle("Entradas", "A1", "B1", styles.header)
	for i, e := range sorted {
		f.SetSheetRow("Entradas", fmt.Sprintf("A%d", i+2), &[]any{core.FormatDisplayDate(e.Date), e.MM})
	}
	f.SetColWidth("Entradas", "A", "B", 20)

	summary := "Resumen " + year
	if _, err := f.NewSheet(summary); err != nil {
		return nil, err
	}
	f.SetSheetRow(summary, "A1", &[]any{"Mes", "Total (mm)"})
	f.SetCellStyle(summary, "A1", "B1", styles.header)
	totals := rain.MonthlyTotals(entries, year)
	for i, total := range totals {
		f.SetSheetRow(summary, fmt.Sprintf("A%d", i+2), &[]any{monthNames[i], total})
	}
	f.SetColWidth(summary, "A", "B", 18)

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)
	return f, nil
}

// WriteWorkbook streams the workbook and closes it.
func WriteWorkbook(f *excelize.File, w io.Writer) error {
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
