package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"aspire/internal/core"
)

const maxBodyBytes = 1 << 20

// requestDateLayout is the date format of the JSON API.
const requestDateLayout = "2006-01-02"

var errBadRequest = errors.New("bad request")

// decodeJSON reads one JSON object into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must hold a single JSON object", errBadRequest)
	}
	return nil
}

// sanitizeInput removes control characters except tab and newlines, and trims.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

type transactionRequest struct {
	Amount   string `json:"amount"`
	Memo     string `json:"memo"`
	Date     string `json:"date"`
	Account  string `json:"account"`
	Category string `json:"category"`
	Type     string `json:"type"`
	Approval string `json:"approval"`
	Payee    string `json:"payee"`
	// RowNum targets an existing sheet row instead of appending.
	RowNum       *int `json:"row_num"`
	AddViaScript bool `json:"add_via_script"`
}

// toTransaction builds the domain value. The date defaults to today and the
// approval to pending.
func (req transactionRequest) toTransaction(now time.Time) (core.Transaction, error) {
	date := now
	if d := strings.TrimSpace(req.Date); d != "" {
		parsed, err := time.Parse(requestDateLayout, d)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("%w: date must be YYYY-MM-DD", errBadRequest)
		}
		date = parsed
	}
	if req.RowNum != nil && *req.RowNum < 1 {
		return core.Transaction{}, fmt.Errorf("%w: row_num must be positive", errBadRequest)
	}

	t := core.NewTransaction(date, sanitizeInput(req.Amount), core.TransactionType(trimLower(req.Type)))
	t.Memo = sanitizeInput(req.Memo)
	t.Account = sanitizeInput(req.Account)
	t.Category = sanitizeInput(req.Category)
	t.Payee = sanitizeInput(req.Payee)
	t.RowNum = req.RowNum
	if a := trimLower(req.Approval); a != "" {
		t.Approval = core.ApprovalType(a)
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

type categoryTransferRequest struct {
	Amount       string `json:"amount"`
	FromCategory string `json:"from_category"`
	ToCategory   string `json:"to_category"`
	Memo         string `json:"memo"`
}

func (req categoryTransferRequest) toCategoryTransfer() (core.CategoryTransfer, error) {
	ct := core.CategoryTransfer{
		Amount:       sanitizeInput(req.Amount),
		FromCategory: sanitizeInput(req.FromCategory),
		ToCategory:   sanitizeInput(req.ToCategory),
		Memo:         sanitizeInput(req.Memo),
	}
	if err := ct.Validate(); err != nil {
		return core.CategoryTransfer{}, err
	}
	return ct, nil
}

type transactionJSON struct {
	ID       string `json:"id"`
	RowNum   *int   `json:"row_num,omitempty"`
	Amount   string `json:"amount"`
	Memo     string `json:"memo"`
	Date     string `json:"date"`
	Account  string `json:"account"`
	Category string `json:"category"`
	Type     string `json:"type"`
	Approval string `json:"approval"`
	Payee    string `json:"payee"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:       t.Identifier(),
		RowNum:   t.RowNum,
		Amount:   t.Amount,
		Memo:     t.Memo,
		Date:     t.Date.Format(requestDateLayout),
		Account:  t.Account,
		Category: t.Category,
		Type:     string(t.Type),
		Approval: string(t.Approval),
		Payee:    t.Payee,
	}
}

func trimLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
