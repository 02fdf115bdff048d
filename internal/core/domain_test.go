package core

import (
	"errors"
	"testing"
)

func fptr(v float64) *float64 { return &v }

func TestTotalValue(t *testing.T) {
	tests := []struct {
		name      string
		quantity  float64
		unitPrice *float64
		want      float64
	}{
		{name: "quantity times price", quantity: 10, unitPrice: fptr(500), want: 5000},
		{name: "missing price counts as zero", quantity: 10, unitPrice: nil, want: 0},
		{name: "fractional quantity", quantity: 2.5, unitPrice: fptr(100), want: 250},
		{name: "zero price", quantity: 3, unitPrice: fptr(0), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TotalValue(tt.quantity, tt.unitPrice)
			if got != tt.want {
				t.Errorf("TotalValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransactionDraft_Validate(t *testing.T) {
	valid := TransactionDraft{
		Type:        Purchase,
		ProductName: "Maíz",
		Quantity:    10,
		UnitPrice:   fptr(500),
		Date:        "2024-05-01",
	}

	tests := []struct {
		name    string
		mutate  func(d *TransactionDraft)
		wantErr error
	}{
		{name: "valid purchase", mutate: func(d *TransactionDraft) {}, wantErr: nil},
		{name: "valid sale", mutate: func(d *TransactionDraft) { d.Type = Sale }, wantErr: nil},
		{name: "unknown type", mutate: func(d *TransactionDraft) { d.Type = "trueque" }, wantErr: ErrInvalidType},
		{name: "blank product name", mutate: func(d *TransactionDraft) { d.ProductName = "   " }, wantErr: ErrEmptyProductName},
		{name: "zero quantity", mutate: func(d *TransactionDraft) { d.Quantity = 0 }, wantErr: ErrInvalidQuantity},
		{name: "negative quantity", mutate: func(d *TransactionDraft) { d.Quantity = -1 }, wantErr: ErrInvalidQuantity},
		{name: "negative unit price", mutate: func(d *TransactionDraft) { d.UnitPrice = fptr(-10) }, wantErr: ErrNegativeUnitPrice},
		{name: "nil unit price allowed", mutate: func(d *TransactionDraft) { d.UnitPrice = nil }, wantErr: nil},
		{name: "malformed date", mutate: func(d *TransactionDraft) { d.Date = "01/05/2024" }, wantErr: ErrInvalidDate},
		{name: "impossible date", mutate: func(d *TransactionDraft) { d.Date = "2024-02-31" }, wantErr: ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			err := d.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConvertARSToUSD(t *testing.T) {
	tests := []struct {
		name string
		ars  float64
		rate float64
		want float64
	}{
		{name: "normal conversion", ars: 50000, rate: 1000, want: 50},
		{name: "zero rate yields zero", ars: 50000, rate: 0, want: 0},
		{name: "negative rate yields zero", ars: 50000, rate: -5, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertARSToUSD(tt.ars, tt.rate)
			if got != tt.want {
				t.Errorf("ConvertARSToUSD() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransaction_USDValue(t *testing.T) {
	withRate := Transaction{TotalValue: 50000, ExchangeRate: fptr(1000)}
	if got := withRate.USDValue(); got != 50 {
		t.Errorf("USDValue() = %v, want 50", got)
	}

	withoutRate := Transaction{TotalValue: 50000}
	if got := withoutRate.USDValue(); got != 0 {
		t.Errorf("USDValue() without rate = %v, want 0", got)
	}
}
