package core

import (
	"errors"
	"strings"
)

const (
	// Purchase increases inventory cost ("entrada" in the stored payload).
	Purchase TransactionType = "entrada"
	// Sale realizes revenue ("salida" in the stored payload).
	Sale TransactionType = "salida"
)

type (
	TransactionType string

	// Transaction is one inventory movement. Monetary values are ARS;
	// TotalValue is always derived from Quantity and UnitPrice, and
	// ExchangeRate is stamped once at creation and never recomputed.
	Transaction struct {
		ID           string          `json:"id"`
		Type         TransactionType `json:"type"`
		ProductType  string          `json:"productType,omitempty"`
		ProductName  string          `json:"productName"`
		Quantity     float64         `json:"quantity"`
		UnitPrice    *float64        `json:"unitPrice,omitempty"`
		TotalValue   float64         `json:"totalValue"`
		Date         string          `json:"date"`
		Notes        string          `json:"notes,omitempty"`
		ExchangeRate *float64        `json:"exchangeRate,omitempty"`
	}

	// TransactionDraft is the caller-supplied input for creating a
	// transaction. ID, TotalValue and ExchangeRate are assigned by the store.
	TransactionDraft struct {
		Type        TransactionType
		ProductType string
		ProductName string
		Quantity    float64
		UnitPrice   *float64
		Date        string
		Notes       string
	}

	// TransactionPatch carries the fields of a partial update. Nil means
	// "leave unchanged".
	TransactionPatch struct {
		Type        *TransactionType
		ProductType *string
		ProductName *string
		Quantity    *float64
		UnitPrice   *float64
		Date        *string
		Notes       *string
	}
)

var (
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrEmptyProductName  = errors.New("empty product name")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrNegativeUnitPrice = errors.New("unit price cannot be negative")
	ErrInvalidDate       = errors.New("invalid date")
)

func (t TransactionType) Valid() bool {
	return t == Purchase || t == Sale
}

// TotalValue derives the ARS total for a quantity and an optional unit price.
// A missing unit price counts as zero.
func TotalValue(quantity float64, unitPrice *float64) float64 {
	if unitPrice == nil {
		return 0
	}
	return quantity * *unitPrice
}

func (d TransactionDraft) Validate() error {
	if !d.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(d.ProductName) == "" {
		return ErrEmptyProductName
	}
	if d.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if d.UnitPrice != nil && *d.UnitPrice < 0 {
		return ErrNegativeUnitPrice
	}
	if !ValidISODate(d.Date) {
		return ErrInvalidDate
	}
	return nil
}

// ConvertARSToUSD converts an ARS amount with an ARS-per-USD rate.
// A zero or negative rate yields zero rather than an error.
func ConvertARSToUSD(arsAmount, exchangeRate float64) float64 {
	if exchangeRate <= 0 {
		return 0
	}
	return arsAmount / exchangeRate
}

// USDValue returns the USD equivalent of the transaction total, or zero when
// no exchange rate was stamped.
func (t Transaction) USDValue() float64 {
	if t.ExchangeRate == nil {
		return 0
	}
	return ConvertARSToUSD(t.TotalValue, *t.ExchangeRate)
}
