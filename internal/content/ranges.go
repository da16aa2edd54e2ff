package content

import (
	"context"
	"fmt"

	"aspire/internal/core"
	applog "aspire/internal/log"
)

// RangeResolver picks the range of a dataset: the user's DataMap entry when
// one exists, otherwise the layout of the spreadsheet's schema version.
type RangeResolver struct {
	versions *VersionResolver
	logger   *applog.Logger
}

func NewRangeResolver(versions *VersionResolver, logger *applog.Logger) *RangeResolver {
	if logger == nil {
		logger = applog.Discard()
	}
	return &RangeResolver{versions: versions, logger: logger}
}

// Resolution is a resolved range. Version is empty when the range came from
// the DataMap, since no version read was needed.
type Resolution struct {
	Range   string
	Version core.SchemaVersion
	Named   bool
}

// RangeFor resolves the single range of k.
func (r *RangeResolver) RangeFor(ctx context.Context, k Kind, spreadsheetID string, dataMap core.DataMap) (Resolution, error) {
	if key, ok := k.DataMapKey(); ok {
		if rng, ok := dataMap[key]; ok && rng != "" {
			return Resolution{Range: rng, Named: true}, nil
		}
	}
	return r.fromVersion(ctx, k, spreadsheetID, dataMap)
}

// fromVersion resolves k through the schema version only, ignoring DataMap
// ranges. The DataMap may still locate the version cell.
func (r *RangeResolver) fromVersion(ctx context.Context, k Kind, spreadsheetID string, dataMap core.DataMap) (Resolution, error) {
	v, err := r.versions.Resolve(ctx, spreadsheetID, dataMap)
	if err != nil {
		return Resolution{}, err
	}
	rng, err := RangeFor(k, v)
	if err != nil {
		return Resolution{}, err
	}
	r.logger.DebugContext(ctx, "Range resolved from schema version",
		applog.FieldSpreadsheetID, spreadsheetID,
		applog.FieldDataset, k.String(),
		applog.FieldSchemaVersion, v.String(),
		applog.FieldRange, rng)
	return Resolution{Range: rng, Version: v}, nil
}

// RangesFor resolves the block ranges of a batched kind from a version.
func (r *RangeResolver) RangesFor(k Kind, v core.SchemaVersion) ([]string, error) {
	if !k.Batched() {
		return nil, fmt.Errorf("%w: %s is not batched", ErrUnsupportedDataset, k)
	}
	return RangesFor(k, v)
}
