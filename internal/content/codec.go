package content

import (
	"fmt"
	"strings"
	"time"

	"aspire/internal/core"
)

// DateLayout is how the template formats dates (MM/dd/yyyy).
const DateLayout = "01/02/2006"

const transactionColumns = 8

// Approval glyphs. The first of each set is written back.
var (
	approvedGlyphs = []string{"✅", "\U0001F197"}       // ✅ 🆗
	pendingGlyphs  = []string{"\U0001F17F\uFE0F", "⏺"} // 🅿 ⏺
)

func decodeApproval(cell string) core.ApprovalType {
	// The variation selector is optional; some clients drop it.
	cell = strings.TrimSuffix(strings.TrimSpace(cell), "\uFE0F")
	for _, g := range approvedGlyphs {
		if cell == strings.TrimSuffix(g, "\uFE0F") {
			return core.Approved
		}
	}
	for _, g := range pendingGlyphs {
		if cell == strings.TrimSuffix(g, "\uFE0F") {
			return core.Pending
		}
	}
	return core.Reconcile
}

func encodeApproval(a core.ApprovalType) (string, error) {
	switch a {
	case core.Approved:
		return approvedGlyphs[0], nil
	case core.Pending:
		return pendingGlyphs[0], nil
	case core.Reconcile:
		return "", core.ErrReconcileNotEdit
	}
	return "", fmt.Errorf("%w: %q", core.ErrInvalidApproval, a)
}

// DecodeTransactions turns rows of the transactions range into transactions.
// Rows without exactly eight cells and reconciled rows are left out.
// A date that does not parse becomes now(). firstRow is the sheet row of
// rows[0]. RowNum counts every raw row, so it points at the sheet row even
// when earlier rows were dropped.
func DecodeTransactions(rows core.RawTable, firstRow int, now func() time.Time) core.Transactions {
	if now == nil {
		now = time.Now
	}
	out := core.Transactions{Transactions: make([]core.Transaction, 0, len(rows))}
	for i, row := range rows {
		if len(row) != transactionColumns {
			continue
		}
		approval := decodeApproval(row[7])
		if approval == core.Reconcile {
			continue
		}
		date, err := time.Parse(DateLayout, strings.TrimSpace(row[0]))
		if err != nil {
			date = now()
		}
		amount, typ := row[5], core.Outflow
		if row[5] == "" {
			amount, typ = row[6], core.Inflow
		}
		rowNum := firstRow + i
		out.Transactions = append(out.Transactions, core.Transaction{
			ID:       fmt.Sprint(rowNum),
			Date:     date,
			Account:  row[1],
			Payee:    row[2],
			Category: row[3],
			Memo:     row[4],
			Amount:   amount,
			Type:     typ,
			Approval: approval,
			RowNum:   &rowNum,
		})
	}
	return out
}

// EncodeTransaction renders t as one row in the column order of the
// transactions range: date, account, payee, category, memo, outflow, inflow, status.
func EncodeTransaction(t core.Transaction, _ core.SchemaVersion) (core.RawTable, error) {
	status, err := encodeApproval(t.Approval)
	if err != nil {
		return nil, err
	}
	var outflow, inflow string
	switch t.Type {
	case core.Outflow:
		outflow = t.Amount
	case core.Inflow:
		inflow = t.Amount
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidType, t.Type)
	}
	return core.RawTable{{
		t.Date.Format(DateLayout),
		t.Account,
		t.Payee,
		t.Category,
		t.Memo,
		outflow,
		inflow,
		status,
	}}, nil
}

// DecodeTrxCategories flattens every non-empty cell into the category list.
func DecodeTrxCategories(rows core.RawTable) core.TrxCategories {
	out := core.TrxCategories{Categories: []string{}}
	for _, row := range rows {
		for _, cell := range row {
			if cell != "" {
				out.Categories = append(out.Categories, cell)
			}
		}
	}
	return out
}

// FirstCells collects the first cell of each row. A block without values or
// a row with no cells makes the table unusable as a list.
func FirstCells(rows core.RawTable) ([]string, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: block has no values", ErrInconsistentRemoteData)
	}
	out := make([]string, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 {
			return nil, fmt.Errorf("%w: row %d is empty", ErrInconsistentRemoteData, i)
		}
		out = append(out, row[0])
	}
	return out, nil
}

// DecodeAddTransactionMetadata assembles the lists read in batch order:
// categories, accounts, payees.
func DecodeAddTransactionMetadata(lists [][]string) (core.AddTransactionMetadata, error) {
	if len(lists) != 3 {
		return core.AddTransactionMetadata{}, fmt.Errorf("%w: expected 3 lists, got %d",
			ErrInconsistentRemoteData, len(lists))
	}
	return core.AddTransactionMetadata{
		Categories: lists[0],
		Accounts:   lists[1],
		Payees:     lists[2],
	}, nil
}

func DecodeDashboard(rows core.RawTable) core.Dashboard {
	return core.Dashboard{Rows: cloneTable(rows)}
}

func DecodeAccountBalances(rows core.RawTable) core.AccountBalances {
	return core.AccountBalances{Rows: cloneTable(rows)}
}

// EncodeCategoryTransfer renders ct as the single row the category transfers
// range expects: date, amount, from, to, memo.
func EncodeCategoryTransfer(ct core.CategoryTransfer, now time.Time) core.RawTable {
	return core.RawTable{{
		now.Format(DateLayout),
		ct.Amount,
		ct.FromCategory,
		ct.ToCategory,
		ct.Memo,
	}}
}

func cloneTable(rows core.RawTable) core.RawTable {
	out := make(core.RawTable, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}
