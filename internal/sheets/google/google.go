// Package google talks to the Sheets v4 and Apps Script APIs.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "aspire/internal/sheets"
)

const (
	// Values are parsed as if typed by a user, so dates and amounts become
	// dates and numbers instead of text.
	valueInputOption = "USER_ENTERED"
	insertDataOption = "INSERT_ROWS"
	// Reads return what the sheet displays, e.g. "$5.00" and "11/11/2050".
	valueRenderOption = "FORMATTED_VALUE"
)

// Client implements the sheets ports over the Sheets v4 values API.
type Client struct {
	svc    *gsheet.Service
	logger *slog.Logger
}

var _ ports.Transport = (*Client)(nil)

// New creates a Sheets client from API client options.
func New(ctx context.Context, logger *slog.Logger, opts ...goption.ClientOption) (*Client, error) {
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, logger), nil
}

func NewWithService(svc *gsheet.Service, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{svc: svc, logger: logger}
}

// Read fetches all locations with one batchGet call.
func (c *Client) Read(ctx context.Context, spreadsheetID string, locations []string) ([]ports.ValueBlock, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.BatchGet(spreadsheetID).
		Ranges(locations...).
		ValueRenderOption(valueRenderOption).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("batch get %v: %w", locations, err)
	}
	out := make([]ports.ValueBlock, 0, len(resp.ValueRanges))
	for i, vr := range resp.ValueRanges {
		if vr == nil {
			continue
		}
		rng := vr.Range
		if rng == "" && i < len(locations) {
			rng = locations[i]
		}
		out = append(out, ports.ValueBlock{Range: rng, Values: toTable(vr.Values)})
	}
	c.logger.DebugContext(ctx, "Sheets batch get",
		"spreadsheet_id", spreadsheetID,
		"ranges", locations,
		"blocks", len(out))
	return out, nil
}

// Write appends to named and open-ended locations and updates bounded ones.
func (c *Client) Write(ctx context.Context, spreadsheetID, location string, block ports.ValueBlock) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	r, err := ports.ParseRange(location)
	if err != nil {
		return err
	}
	vr := &gsheet.ValueRange{Values: toRows(block.Values)}

	if r.Appends() {
		resp, err := c.svc.Spreadsheets.Values.Append(spreadsheetID, location, vr).
			ValueInputOption(valueInputOption).
			InsertDataOption(insertDataOption).
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("append %s: %w", location, err)
		}
		updated := ""
		if resp.Updates != nil {
			updated = resp.Updates.UpdatedRange
		}
		c.logger.InfoContext(ctx, "Rows appended",
			"spreadsheet_id", spreadsheetID,
			"range", location,
			"updated_range", updated,
			"rows", len(block.Values))
		return nil
	}

	if _, err := c.svc.Spreadsheets.Values.Update(spreadsheetID, location, vr).
		ValueInputOption(valueInputOption).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", location, err)
	}
	c.logger.InfoContext(ctx, "Range updated",
		"spreadsheet_id", spreadsheetID,
		"range", location,
		"rows", len(block.Values))
	return nil
}
