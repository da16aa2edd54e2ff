package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aspire/internal/core"
)

var fixedNow = time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func TestDecodeTransactionsOutflowApproved(t *testing.T) {
	rows := core.RawTable{
		{"11/11/2050", "AcctA", "PayeeA", "Cat1", "memo", "$5.00", "", "✅"},
	}
	got := DecodeTransactions(rows, transactionsFirstRow, clock)
	require.Len(t, got.Transactions, 1)

	trx := got.Transactions[0]
	assert.Equal(t, core.Outflow, trx.Type)
	assert.Equal(t, "$5.00", trx.Amount)
	assert.Equal(t, core.Approved, trx.Approval)
	assert.Equal(t, "AcctA", trx.Account)
	assert.Equal(t, "PayeeA", trx.Payee)
	assert.Equal(t, "Cat1", trx.Category)
	assert.Equal(t, "memo", trx.Memo)
	assert.Equal(t, time.Date(2050, time.November, 11, 0, 0, 0, 0, time.UTC), trx.Date)
	require.NotNil(t, trx.RowNum)
	assert.Equal(t, 9, *trx.RowNum)
	assert.Equal(t, "9", trx.Identifier())
}

func TestDecodeTransactionsFiltering(t *testing.T) {
	rows := core.RawTable{
		{"01/02/2024", "Checking", "Shop", "Food", "", "", "$12.50", "🅿️"},
		{"too", "short"},
		{"01/03/2024", "Checking", "Shop", "Food", "", "$1.00", "", "*️⃣"},
		{"not a date", "Savings", "Boss", "Income", "pay", "", "$900", "⏺"},
		{"01/05/2024", "Savings", "", "Fun", "", "$3.00", "", "🆗"},
		{"01/06/2024", "Savings", "", "Fun", "", "$3.00", "", "✅", "extra"},
	}
	got := DecodeTransactions(rows, transactionsFirstRow, clock).Transactions
	require.Len(t, got, 3)

	assert.Equal(t, core.Inflow, got[0].Type)
	assert.Equal(t, "$12.50", got[0].Amount)
	assert.Equal(t, core.Pending, got[0].Approval)
	assert.Equal(t, 9, *got[0].RowNum)

	// Unparseable dates fall back to the clock.
	assert.Equal(t, fixedNow, got[1].Date)
	assert.Equal(t, core.Pending, got[1].Approval)
	assert.Equal(t, 12, *got[1].RowNum)

	assert.Equal(t, core.Approved, got[2].Approval)
	assert.Equal(t, 13, *got[2].RowNum)
}

func TestDecodeApprovalWithoutVariationSelector(t *testing.T) {
	assert.Equal(t, core.Pending, decodeApproval("\U0001F17F"))
	assert.Equal(t, core.Pending, decodeApproval("\U0001F17F\uFE0F"))
	assert.Equal(t, core.Approved, decodeApproval(" ✅ "))
	assert.Equal(t, core.Reconcile, decodeApproval(""))
}

func TestTransactionRoundTrip(t *testing.T) {
	rows := []core.RawTable{
		{{"11/11/2050", "AcctA", "PayeeA", "Cat1", "memo", "$5.00", "", "✅"}},
		{{"02/29/2024", "Cash", "", "Gifts", "", "", "$20", "\U0001F17F\uFE0F"}},
	}
	for _, raw := range rows {
		decoded := DecodeTransactions(raw, transactionsFirstRow, clock)
		require.Len(t, decoded.Transactions, 1)
		encoded, err := EncodeTransaction(decoded.Transactions[0], core.Version3_3_0)
		require.NoError(t, err)
		assert.Equal(t, raw, encoded)
	}
}

func TestEncodeTransactionRejects(t *testing.T) {
	trx := core.NewTransaction(fixedNow, "$1", core.Outflow)
	trx.Approval = core.Reconcile
	_, err := EncodeTransaction(trx, "")
	assert.ErrorIs(t, err, core.ErrReconcileNotEdit)

	trx.Approval = core.Approved
	trx.Type = "sideways"
	_, err = EncodeTransaction(trx, "")
	assert.ErrorIs(t, err, core.ErrInvalidType)
}

func TestDecodeTrxCategories(t *testing.T) {
	got := DecodeTrxCategories(core.RawTable{{"Rent", ""}, {}, {"Food", "Fun"}})
	assert.Equal(t, []string{"Rent", "Food", "Fun"}, got.Categories)

	assert.Empty(t, DecodeTrxCategories(nil).Categories)
}

func TestDecodeAddTransactionMetadata(t *testing.T) {
	cats, err := FirstCells(core.RawTable{{"C1"}, {"C2", "x"}, {"C3"}})
	require.NoError(t, err)
	accts, err := FirstCells(core.RawTable{{"A1"}, {"A2"}, {"A3"}})
	require.NoError(t, err)
	payees, err := FirstCells(core.RawTable{{"P1"}, {"P2"}, {"P3"}})
	require.NoError(t, err)

	meta, err := DecodeAddTransactionMetadata([][]string{cats, accts, payees})
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "C2", "C3"}, meta.Categories)
	assert.Equal(t, []string{"A1", "A2", "A3"}, meta.Accounts)
	assert.Equal(t, []string{"P1", "P2", "P3"}, meta.Payees)

	_, err = DecodeAddTransactionMetadata([][]string{cats, accts})
	assert.ErrorIs(t, err, ErrInconsistentRemoteData)

	_, err = FirstCells(core.RawTable{{"ok"}, {}})
	assert.ErrorIs(t, err, ErrInconsistentRemoteData)

	_, err = FirstCells(nil)
	assert.ErrorIs(t, err, ErrInconsistentRemoteData)
	_, err = FirstCells(core.RawTable{})
	assert.ErrorIs(t, err, ErrInconsistentRemoteData)
}

func TestDecodePassThroughCopies(t *testing.T) {
	rows := core.RawTable{{"✦", "", "Group"}, {"✧", "", "Rent", "$10"}}
	dash := DecodeDashboard(rows)
	assert.Equal(t, rows, dash.Rows)

	rows[0][2] = "changed"
	assert.Equal(t, "Group", dash.Rows[0][2])

	assert.Equal(t, core.RawTable{{"Checking", "$10"}}, DecodeAccountBalances(core.RawTable{{"Checking", "$10"}}).Rows)
}

func TestEncodeCategoryTransfer(t *testing.T) {
	ct := core.CategoryTransfer{Amount: "$25", FromCategory: "Fun", ToCategory: "Rent", Memo: "cover"}
	got := EncodeCategoryTransfer(ct, fixedNow)
	assert.Equal(t, core.RawTable{{"03/05/2024", "$25", "Fun", "Rent", "cover"}}, got)
}
