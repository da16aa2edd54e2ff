package sheets

import (
	"context"

	"aspire/internal/core"
)

// ValueBlock pairs a range with the cells read from, or written to, it.
type ValueBlock struct {
	Range  string
	Values core.RawTable
}

// Apps Script functions shipped with the budget template.
const (
	FunctionTopUpMonthlyBudget = "topUpMonthlyBudget"
	FunctionAddTransaction     = "addTransaction"
)

// Ports for outbound adapters.
type (
	// ValuesReader fetches several ranges in one round trip. The returned blocks
	// follow the order of locations. Transport and auth failures are errors,
	// never an empty success.
	ValuesReader interface {
		Read(ctx context.Context, spreadsheetID string, locations []string) ([]ValueBlock, error)
	}

	// ValuesWriter stores block at location. Named ranges and locations whose
	// end row is open ("Sheet!B9:I", "Sheet!B:F") append after the existing
	// rows; bounded locations are overwritten in place. See Range.Appends.
	ValuesWriter interface {
		Write(ctx context.Context, spreadsheetID string, location string, block ValueBlock) error
	}

	Transport interface {
		ValuesReader
		ValuesWriter
	}

	// ScriptRunner executes a function of the bound Apps Script project.
	ScriptRunner interface {
		Run(ctx context.Context, function string, params ...any) (done bool, err error)
	}
)
