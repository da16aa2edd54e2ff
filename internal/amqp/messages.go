package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"aspire/internal/core"
)

// Message types, carried in the AMQP Type property.
const (
	TypeTransactionSubmit = "transaction.submit"
	TypeCategoryTransfer  = "category_transfer.submit"
)

// payloadDateLayout is how transaction dates travel on the queue.
const payloadDateLayout = "2006-01-02"

// TransactionSubmitMessage asks the worker to write one transaction. When
// AddViaScript is set the bound Apps Script addTransaction runs as well.
type TransactionSubmitMessage struct {
	ID            string       `json:"id"`
	SpreadsheetID string       `json:"spreadsheet_id"`
	DataMap       core.DataMap `json:"data_map,omitempty"`
	Amount        string       `json:"amount"`
	Memo          string       `json:"memo,omitempty"`
	Date          string       `json:"date"`
	Account       string       `json:"account"`
	Category      string       `json:"category"`
	Type          string       `json:"type"`
	Approval      string       `json:"approval"`
	Payee         string       `json:"payee,omitempty"`
	RowNum        *int         `json:"row_num,omitempty"`
	AddViaScript  bool         `json:"add_via_script,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

func NewTransactionSubmitMessage(spreadsheetID string, dm core.DataMap, t core.Transaction, addViaScript bool) *TransactionSubmitMessage {
	return &TransactionSubmitMessage{
		ID:            uuid.NewString(),
		SpreadsheetID: spreadsheetID,
		DataMap:       dm,
		Amount:        t.Amount,
		Memo:          t.Memo,
		Date:          t.Date.Format(payloadDateLayout),
		Account:       t.Account,
		Category:      t.Category,
		Type:          string(t.Type),
		Approval:      string(t.Approval),
		Payee:         t.Payee,
		RowNum:        t.RowNum,
		AddViaScript:  addViaScript,
		Timestamp:     time.Now(),
	}
}

// Transaction rebuilds the domain transaction carried by the message.
func (m *TransactionSubmitMessage) Transaction() (core.Transaction, error) {
	date, err := time.Parse(payloadDateLayout, m.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date %q: %w", m.Date, err)
	}
	return core.Transaction{
		ID:       m.ID,
		Amount:   m.Amount,
		Memo:     m.Memo,
		Date:     date,
		Account:  m.Account,
		Category: m.Category,
		Type:     core.TransactionType(m.Type),
		Approval: core.ApprovalType(m.Approval),
		Payee:    m.Payee,
		RowNum:   m.RowNum,
	}, nil
}

func (m *TransactionSubmitMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionSubmitMessageFromJSON(data []byte) (*TransactionSubmitMessage, error) {
	var msg TransactionSubmitMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// CategoryTransferMessage asks the worker to record a category transfer.
type CategoryTransferMessage struct {
	ID            string       `json:"id"`
	SpreadsheetID string       `json:"spreadsheet_id"`
	DataMap       core.DataMap `json:"data_map,omitempty"`
	Amount        string       `json:"amount"`
	FromCategory  string       `json:"from_category"`
	ToCategory    string       `json:"to_category"`
	Memo          string       `json:"memo,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

func NewCategoryTransferMessage(spreadsheetID string, dm core.DataMap, ct core.CategoryTransfer) *CategoryTransferMessage {
	return &CategoryTransferMessage{
		ID:            uuid.NewString(),
		SpreadsheetID: spreadsheetID,
		DataMap:       dm,
		Amount:        ct.Amount,
		FromCategory:  ct.FromCategory,
		ToCategory:    ct.ToCategory,
		Memo:          ct.Memo,
		Timestamp:     time.Now(),
	}
}

func (m *CategoryTransferMessage) CategoryTransfer() core.CategoryTransfer {
	return core.CategoryTransfer{
		Amount:       m.Amount,
		FromCategory: m.FromCategory,
		ToCategory:   m.ToCategory,
		Memo:         m.Memo,
	}
}

func (m *CategoryTransferMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func CategoryTransferMessageFromJSON(data []byte) (*CategoryTransferMessage, error) {
	var msg CategoryTransferMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
