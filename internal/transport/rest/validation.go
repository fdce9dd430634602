package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"atelier-backend/internal/domain"
	"atelier-backend/internal/service"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Clients send amounts as either JSON strings or numbers; both are accepted,
// strings preferred because they survive without float rounding.
func toDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Zero, domain.NewValidationError("", "invalid decimal value")
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero, domain.NewValidationError("", "invalid decimal value")
		}
		return d, nil
	default:
		return decimal.Zero, domain.NewValidationError("", "amount must be a number or numeric string")
	}
}

func toDate(v string) (time.Time, error) {
	parsed, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, domain.NewValidationError("", "date must be YYYY-MM-DD")
	}
	return parsed, nil
}

type rawCreateDebtRequest struct {
	Reference          string `json:"reference"`
	MachineDescription string `json:"machine_description"`
	TechnicianName     string `json:"technician_name"`
	Reason             string `json:"reason"`
	Amount             any    `json:"amount"`
	ExpectedReturnDate string `json:"expected_return_date"`
}

func ValidateCreateDebtRequest(r *http.Request) (*service.CreateDebtInput, error) {
	var raw rawCreateDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, domain.NewValidationError("body", "invalid JSON")
	}

	if raw.MachineDescription == "" {
		return nil, domain.NewValidationError("machine_description", "machine description is required")
	}
	if raw.TechnicianName == "" {
		return nil, domain.NewValidationError("technician_name", "technician name is required")
	}
	if raw.Amount == nil {
		return nil, domain.NewValidationError("amount", "amount is required")
	}

	amount, err := toDecimal(raw.Amount)
	if err != nil {
		return nil, domain.NewValidationError("amount", "amount must be a number or numeric string")
	}

	if raw.ExpectedReturnDate == "" {
		return nil, domain.NewValidationError("expected_return_date", "expected return date is required")
	}
	returnDate, err := toDate(raw.ExpectedReturnDate)
	if err != nil {
		return nil, domain.NewValidationError("expected_return_date", "expected return date must be YYYY-MM-DD")
	}

	return &service.CreateDebtInput{
		Reference:          raw.Reference,
		MachineDescription: raw.MachineDescription,
		TechnicianName:     raw.TechnicianName,
		Reason:             raw.Reason,
		Amount:             amount,
		ExpectedReturnDate: returnDate,
	}, nil
}

type rawUpdateDebtRequest struct {
	MachineDescription *string `json:"machine_description"`
	TechnicianName     *string `json:"technician_name"`
	Reason             *string `json:"reason"`
	Amount             any     `json:"amount"`
	ExpectedReturnDate *string `json:"expected_return_date"`
}

func ValidateUpdateDebtRequest(r *http.Request) (*service.UpdateDebtInput, error) {
	var raw rawUpdateDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, domain.NewValidationError("body", "invalid JSON")
	}

	in := &service.UpdateDebtInput{
		MachineDescription: raw.MachineDescription,
		TechnicianName:     raw.TechnicianName,
		Reason:             raw.Reason,
	}

	if raw.Amount != nil {
		amount, err := toDecimal(raw.Amount)
		if err != nil {
			return nil, domain.NewValidationError("amount", "amount must be a number or numeric string")
		}
		in.Amount = &amount
	}

	if raw.ExpectedReturnDate != nil {
		returnDate, err := toDate(*raw.ExpectedReturnDate)
		if err != nil {
			return nil, domain.NewValidationError("expected_return_date", "expected return date must be YYYY-MM-DD")
		}
		in.ExpectedReturnDate = &returnDate
	}

	return in, nil
}

type rawPayDebtRequest struct {
	PaidAmount any `json:"paid_amount"`
}

func ValidatePayDebtRequest(r *http.Request) (decimal.Decimal, error) {
	var raw rawPayDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return decimal.Zero, domain.NewValidationError("body", "invalid JSON")
	}

	if raw.PaidAmount == nil {
		return decimal.Zero, domain.NewValidationError("paid_amount", "paid_amount is required")
	}

	amount, err := toDecimal(raw.PaidAmount)
	if err != nil {
		return decimal.Zero, domain.NewValidationError("paid_amount", "paid_amount must be a number or numeric string")
	}
	return amount, nil
}

type rawExportRequest struct {
	Fields []string `json:"fields"`

	Status         *string `json:"status"`
	TechnicianName *string `json:"technician_name"`
	CreatedSince   *string `json:"created_since"`
}

type ExportRequest struct {
	Fields         []string
	Status         *domain.DebtStatus
	TechnicianName *string
	CreatedSince   *time.Time
}

func ValidateExportRequest(r *http.Request) (*ExportRequest, error) {
	var raw rawExportRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && err != io.EOF {
		return nil, domain.NewValidationError("body", "invalid JSON")
	}

	req := &ExportRequest{
		Fields:         raw.Fields,
		TechnicianName: raw.TechnicianName,
	}

	if raw.Status != nil && *raw.Status != "" {
		status := domain.DebtStatus(*raw.Status)
		switch status {
		case domain.StatusPending, domain.StatusPartiallyPaid, domain.StatusPaid:
			req.Status = &status
		default:
			return nil, domain.NewValidationError("status", "status must be one of pending, partially_paid, paid")
		}
	}

	if raw.CreatedSince != nil && *raw.CreatedSince != "" {
		since, err := toDate(*raw.CreatedSince)
		if err != nil {
			return nil, domain.NewValidationError("created_since", "created_since must be YYYY-MM-DD")
		}
		req.CreatedSince = &since
	}

	return req, nil
}
