package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"inventario/internal/core"
)

// SheetsClient pushes ledger rows into a Google spreadsheet. It is optional
// infrastructure: the worker only constructs it when a spreadsheet id is
// configured.
type SheetsClient struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// NewSheetsClient builds a client authenticated with service-account
// credentials taken from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func NewSheetsClient(ctx context.Context, spreadsheetID, sheetName string) (*SheetsClient, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if sheetName == "" {
		sheetName = "Transacciones"
	}

	credentials, err := credentialsFromEnv()
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &SheetsClient{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

func credentialsFromEnv() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return raw, nil
}

// transactionRow renders one spreadsheet row, same column order as the XLSX
// transaction sheets.
func transactionRow(tx core.Transaction) []any {
	typeLabel := "VENTA"
	if tx.Type == core.Purchase {
		typeLabel = "COMPRA"
	}
	unitPrice := 0.0
	if tx.UnitPrice != nil {
		unitPrice = *tx.UnitPrice
	}
	rate := any("-")
	totalUSD := any("-")
	if tx.ExchangeRate != nil && *tx.ExchangeRate > 0 {
		rate = *tx.ExchangeRate
		totalUSD = tx.TotalValue / *tx.ExchangeRate
	}
	return []any{
		core.FormatDisplayDate(tx.Date), typeLabel, tx.ProductName,
		tx.Quantity, unitPrice, tx.TotalValue, totalUSD, rate, tx.Notes,
	}
}

// Append writes the transaction into the next empty row and returns the
// written range.
func (c *SheetsClient) Append(ctx context.Context, tx core.Transaction) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get sheet dimensions for %s: %w", c.sheetName, err)
	}
	nextRow := len(resp.Values) + 1

	target := fmt.Sprintf("%s!A%d:I%d", c.sheetName, nextRow, nextRow)
	vr := &gsheet.ValueRange{Values: [][]any{transactionRow(tx)}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, target, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("update %s: %w", target, err)
	}
	return target, nil
}

// ReplaceAll clears the sheet and rewrites the header plus every transaction,
// most recent first. The worker uses it after ledger mutations so the sheet
// mirrors the collection instead of accumulating duplicates.
func (c *SheetsClient) ReplaceAll(ctx context.Context, transactions []core.Transaction) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:I", c.sheetName)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	values := [][]any{{
		"Fecha", "Tipo", "Producto", "Cantidad", "Precio Unitario (ARS)",
		"Valor Total (ARS)", "Valor Total (USD)", "Cotización USD", "Notas",
	}}
	for _, tx := range transactions {
		values = append(values, transactionRow(tx))
	}

	target := fmt.Sprintf("%s!A1:I%d", c.sheetName, len(values))
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, target, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", target, err)
	}

	slog.InfoContext(ctx, "Spreadsheet replaced", "rows", len(values)-1, "sheet", c.sheetName)
	return nil
}
