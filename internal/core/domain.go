package core

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Schema versions of the Aspire Budgeting template that the content layer can read.
const (
	Version2_8   SchemaVersion = "2.8"
	Version3_0   SchemaVersion = "3.0"
	Version3_1_0 SchemaVersion = "3.1.0"
	Version3_2_0 SchemaVersion = "3.2.0"
	Version3_3_0 SchemaVersion = "3.3.0"
)

const (
	Inflow  TransactionType = "inflow"
	Outflow TransactionType = "outflow"
)

const (
	Pending   ApprovalType = "pending"
	Approved  ApprovalType = "approved"
	Reconcile ApprovalType = "reconcile"
)

// Well-known DataMap keys. Values are named ranges or A1 ranges chosen by the user.
const (
	KeyDashboard         = "Dashboard"
	KeyAccountBalances   = "Account Balances"
	KeyTransactions      = "Transactions"
	KeyTrxCategories     = "trx_CategoriesList"
	KeyCategoryTransfers = "Category Transfers"
	KeyVersion           = "v_Version"
)

type (
	// SchemaVersion is a spreadsheet layout tag read from the version cell.
	SchemaVersion string

	TransactionType string

	ApprovalType string

	// RawTable is the wire shape of a spreadsheet range: rows of text cells.
	// Rows may be shorter than the range is wide.
	RawTable [][]string

	// DataMap maps a logical dataset name to the range holding it.
	DataMap map[string]string

	Transaction struct {
		ID       string
		Amount   string // decimal as displayed by the sheet, e.g. "$5.00"
		Memo     string
		Date     time.Time
		Account  string
		Category string
		Type     TransactionType
		Approval ApprovalType
		Payee    string
		// RowNum is the sheet row the transaction was read from; nil for new ones.
		RowNum *int
	}

	Transactions struct {
		Transactions []Transaction
	}

	Dashboard struct {
		Rows RawTable
	}

	AccountBalances struct {
		Rows RawTable
	}

	TrxCategories struct {
		Categories []string
	}

	AddTransactionMetadata struct {
		Categories []string
		Accounts   []string
		Payees     []string
	}

	CategoryTransfer struct {
		Amount       string
		FromCategory string
		ToCategory   string
		Memo         string
	}
)

var (
	ErrUnknownVersion   = errors.New("unknown schema version")
	ErrEmptyAccount     = errors.New("empty account")
	ErrEmptyCategory    = errors.New("empty category")
	ErrSameCategory     = errors.New("source and destination category are the same")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidApproval  = errors.New("invalid approval state")
	ErrMemoTooLong      = errors.New("memo too long (max 200 characters)")
	ErrReconcileNotEdit = errors.New("reconciled transactions cannot be edited")
)

// SupportedVersions lists every known schema version, oldest first.
func SupportedVersions() []SchemaVersion {
	return []SchemaVersion{Version2_8, Version3_0, Version3_1_0, Version3_2_0, Version3_3_0}
}

// ParseSchemaVersion validates a raw version cell value.
func ParseSchemaVersion(s string) (SchemaVersion, error) {
	v := SchemaVersion(strings.TrimSpace(s))
	if !v.IsValid() {
		return "", ErrUnknownVersion
	}
	return v, nil
}

// IsValid reports whether v is one of the supported versions.
func (v SchemaVersion) IsValid() bool {
	switch v {
	case Version2_8, Version3_0, Version3_1_0, Version3_2_0, Version3_3_0:
		return true
	default:
		return false
	}
}

func (v SchemaVersion) String() string {
	return string(v)
}

// NewTransaction returns a transaction authored locally, identified by a fresh UUID.
func NewTransaction(date time.Time, amount string, typ TransactionType) Transaction {
	return Transaction{
		ID:       uuid.NewString(),
		Date:     date,
		Amount:   amount,
		Type:     typ,
		Approval: Pending,
	}
}

// Identifier returns the row number when the transaction came from the sheet,
// the opaque ID otherwise.
func (t Transaction) Identifier() string {
	if t.RowNum != nil {
		return strconv.Itoa(*t.RowNum)
	}
	return t.ID
}

func (t Transaction) Validate() error {
	if _, err := ParseAmount(t.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(t.Account) == "" {
		return ErrEmptyAccount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Memo) > 200 {
		return ErrMemoTooLong
	}
	switch t.Type {
	case Inflow, Outflow:
	default:
		return ErrInvalidType
	}
	switch t.Approval {
	case Pending, Approved:
	case Reconcile:
		return ErrReconcileNotEdit
	default:
		return ErrInvalidApproval
	}
	return nil
}

// Contains reports whether text matches the amount exactly or appears in any
// of the descriptive fields, ignoring case.
func (t Transaction) Contains(text string) bool {
	if strings.EqualFold(t.Amount, text) {
		return true
	}
	needle := strings.ToLower(text)
	for _, field := range []string{t.Memo, t.Account, t.Category, t.Payee} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// Filter returns the transactions matching text. An empty filter matches all.
func (ts Transactions) Filter(text string) Transactions {
	if strings.TrimSpace(text) == "" {
		return ts
	}
	out := Transactions{Transactions: make([]Transaction, 0, len(ts.Transactions))}
	for _, t := range ts.Transactions {
		if t.Contains(text) {
			out.Transactions = append(out.Transactions, t)
		}
	}
	return out
}

func (ct CategoryTransfer) Validate() error {
	if _, err := ParseAmount(ct.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(ct.FromCategory) == "" || strings.TrimSpace(ct.ToCategory) == "" {
		return ErrEmptyCategory
	}
	if ct.FromCategory == ct.ToCategory {
		return ErrSameCategory
	}
	if len(ct.Memo) > 200 {
		return ErrMemoTooLong
	}
	return nil
}
