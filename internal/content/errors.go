package content

import "errors"

var (
	// ErrUnsupportedSchemaVersion means the version cell holds a tag no layout
	// is known for. The spreadsheet cannot be used.
	ErrUnsupportedSchemaVersion = errors.New("unsupported schema version")

	// ErrInconsistentRemoteData means a fetched block does not have the shape a
	// decoder needs: missing rows or cells, or the wrong number of blocks.
	ErrInconsistentRemoteData = errors.New("inconsistent remote data")

	// ErrUnsupportedForVersion means the dataset has no range in the layout of
	// the spreadsheet's schema version.
	ErrUnsupportedForVersion = errors.New("dataset not supported for schema version")

	// ErrUnsupportedDataset means the kind cannot be used with the requested
	// operation, such as writing a dashboard.
	ErrUnsupportedDataset = errors.New("dataset not supported for operation")
)
