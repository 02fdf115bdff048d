package core

// MonthlySummary aggregates one month of ledger activity. It is derived on
// demand and never persisted. JSON field names match the stored payloads of
// the mobile app this service replaces.
type MonthlySummary struct {
	Month            string  `json:"month"`
	Year             int     `json:"year"`
	TotalPurchases   float64 `json:"totalEntradas"`
	TotalSales       float64 `json:"totalSalidas"`
	GrossMargin      float64 `json:"margenBruto"`
	TransactionCount int     `json:"transactionCount"`
}
