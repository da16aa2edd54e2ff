package content

import (
	"fmt"

	"aspire/internal/core"
)

// dataset is a range a layout places somewhere. It is finer grained than Kind:
// AddTransactionMetadata reads three of them.
type dataset int

const (
	dsDashboard dataset = iota + 1
	dsAccountBalances
	dsTrxCategories
	dsTrxAccounts
	dsPayees
	dsTransactions
	dsTransactionWrite
	dsCategoryTransfer
)

var datasetNames = map[dataset]string{
	dsDashboard:        "dashboard",
	dsAccountBalances:  "account balances",
	dsTrxCategories:    "transaction categories",
	dsTrxAccounts:      "transaction accounts",
	dsPayees:           "payees",
	dsTransactions:     "transactions",
	dsTransactionWrite: "transaction write",
	dsCategoryTransfer: "category transfer",
}

func (d dataset) String() string { return datasetNames[d] }

const (
	transactionsRange      = "My Transactions!B9:I"
	categoryTransfersRange = "Category Transfers!B:F"

	// DefaultVersionLocation holds the version tag when no DataMap entry names it.
	// The tag is the last cell of the row.
	DefaultVersionLocation = "BackendData!2:2"

	// transactionsFirstRow is the sheet row of the first transaction under
	// transactionsRange, and the assumed start of a named transactions range.
	transactionsFirstRow = 9
)

var (
	layoutLegacy = map[dataset]string{
		dsDashboard:       "Dashboard!F4:O",
		dsAccountBalances: "Dashboard!B10:C",
	}
	layoutCurrent = map[dataset]string{
		dsDashboard:       "Dashboard!F6:O",
		dsAccountBalances: "Dashboard!B8:C",
		dsTrxCategories:   "BackendData!G2:G",
		dsTrxAccounts:     "BackendData!M2:M",
	}
)

var registry = map[core.SchemaVersion]map[dataset]string{
	core.Version2_8: merge(layoutLegacy, map[dataset]string{
		dsTrxCategories: "BackendData!B2:B",
		dsTrxAccounts:   "BackendData!E2:E",
	}),
	core.Version3_0: merge(layoutLegacy, map[dataset]string{
		dsTrxCategories: "BackendData!F2:F",
		dsTrxAccounts:   "BackendData!H2:H",
	}),
	core.Version3_1_0: merge(layoutLegacy, map[dataset]string{
		dsTrxCategories: "BackendData!F2:F",
		dsTrxAccounts:   "BackendData!J2:J",
	}),
	core.Version3_2_0: merge(layoutCurrent, nil),
	core.Version3_3_0: merge(layoutCurrent, map[dataset]string{
		dsPayees:           "Payees",
		dsTransactionWrite: transactionsRange,
	}),
}

// Every layout lists transactions and category transfers at the same place.
func merge(base, extra map[dataset]string) map[dataset]string {
	out := map[dataset]string{
		dsTransactions:     transactionsRange,
		dsCategoryTransfer: categoryTransfersRange,
	}
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

var kindDatasets = map[Kind]dataset{
	KindDashboard:        dsDashboard,
	KindAccountBalances:  dsAccountBalances,
	KindTransactions:     dsTransactions,
	KindTransaction:      dsTransactionWrite,
	KindTrxCategories:    dsTrxCategories,
	KindCategoryTransfer: dsCategoryTransfer,
}

// batchDatasets fixes the block order of batched kinds.
var batchDatasets = map[Kind][]dataset{
	KindAddTransactionMetadata: {dsTrxCategories, dsTrxAccounts, dsPayees},
}

func lookup(ds dataset, v core.SchemaVersion) (string, error) {
	layout, ok := registry[v]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSchemaVersion, v)
	}
	rng, ok := layout[ds]
	if !ok || rng == "" {
		return "", fmt.Errorf("%w: %s in %s", ErrUnsupportedForVersion, ds, v)
	}
	return rng, nil
}

// RangeFor returns the range the layout of version v uses for k.
func RangeFor(k Kind, v core.SchemaVersion) (string, error) {
	ds, ok := kindDatasets[k]
	if !ok {
		return "", fmt.Errorf("%w: %s has a single range", ErrUnsupportedDataset, k)
	}
	rng, err := lookup(ds, v)
	if err != nil {
		return "", fmt.Errorf("range for %s: %w", k, err)
	}
	return rng, nil
}

// RangesFor returns the ranges of a batched kind in block order.
func RangesFor(k Kind, v core.SchemaVersion) ([]string, error) {
	sets, ok := batchDatasets[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not batched", ErrUnsupportedDataset, k)
	}
	out := make([]string, 0, len(sets))
	for _, ds := range sets {
		rng, err := lookup(ds, v)
		if err != nil {
			return nil, fmt.Errorf("ranges for %s: %w", k, err)
		}
		out = append(out, rng)
	}
	return out, nil
}
