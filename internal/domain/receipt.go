package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesReceipt is a timestamped amount received against an invoice. The store
// behind it is read-only here; receipts only feed the dashboard aggregation
// and exports.
type SalesReceipt struct {
	ID            int64           `json:"id"`
	InvoiceID     int64           `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"created_at"`
}
