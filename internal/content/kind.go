// Package content maps the datasets of an Aspire Budgeting spreadsheet onto
// typed values. It resolves which range holds a dataset, detects the schema
// version of a spreadsheet and runs reads and writes through a sheets.Transport.
package content

import (
	"fmt"

	"aspire/internal/core"
)

// Kind names a dataset the pipeline knows how to read or write.
type Kind int

const (
	KindDashboard Kind = iota + 1
	KindAccountBalances
	KindTransactions
	KindTransaction
	KindTrxCategories
	KindCategoryTransfer
	KindAddTransactionMetadata
)

var kindNames = map[Kind]string{
	KindDashboard:              "dashboard",
	KindAccountBalances:        "account_balances",
	KindTransactions:           "transactions",
	KindTransaction:            "transaction",
	KindTrxCategories:          "trx_categories",
	KindCategoryTransfer:       "category_transfer",
	KindAddTransactionMetadata: "add_transaction_metadata",
}

// dataMapKeys lists the kinds a user can point at a named range.
// AddTransactionMetadata spans several ranges and has no key.
var dataMapKeys = map[Kind]string{
	KindDashboard:        core.KeyDashboard,
	KindAccountBalances:  core.KeyAccountBalances,
	KindTransactions:     core.KeyTransactions,
	KindTransaction:      core.KeyTransactions,
	KindTrxCategories:    core.KeyTrxCategories,
	KindCategoryTransfer: core.KeyCategoryTransfers,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// DataMapKey returns the DataMap key that may override the range of k.
func (k Kind) DataMapKey() (string, bool) {
	key, ok := dataMapKeys[k]
	return key, ok
}

// Readable reports whether k is fetched through a single-range read.
func (k Kind) Readable() bool {
	switch k {
	case KindDashboard, KindAccountBalances, KindTransactions, KindTrxCategories:
		return true
	}
	return false
}

// Writable reports whether k can be sent through the write pipeline.
func (k Kind) Writable() bool {
	return k == KindTransaction || k == KindCategoryTransfer
}

// Batched reports whether k is assembled from several ranges in one read.
func (k Kind) Batched() bool {
	return k == KindAddTransactionMetadata
}
