package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"aspire/internal/core"

	_ "modernc.org/sqlite"
)

const stateLastSpreadsheet = "last_spreadsheet_id"

// DefaultsStore persists per-spreadsheet preferences: the DataMap of named
// ranges and the spreadsheet used last.
type DefaultsStore struct {
	db      *sql.DB
	queries *Queries
}

func NewDefaultsStore(dbPath string) (*DefaultsStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &DefaultsStore{db: db, queries: New(db)}, nil
}

func (s *DefaultsStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DataMap returns the stored named ranges of a spreadsheet, empty when none.
func (s *DefaultsStore) DataMap(ctx context.Context, spreadsheetID string) (core.DataMap, error) {
	rows, err := s.queries.ListSheetDefaults(ctx, spreadsheetID)
	if err != nil {
		return nil, fmt.Errorf("list sheet defaults: %w", err)
	}
	dm := make(core.DataMap, len(rows))
	for _, r := range rows {
		dm[r.Key] = r.Location
	}
	return dm, nil
}

// SaveDataMap replaces the stored named ranges of a spreadsheet.
func (s *DefaultsStore) SaveDataMap(ctx context.Context, spreadsheetID string, dm core.DataMap) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := s.queries.WithTx(tx)
	if err := q.DeleteSheetDefaults(ctx, spreadsheetID); err != nil {
		return fmt.Errorf("delete sheet defaults: %w", err)
	}
	for key, location := range dm {
		if key == "" || location == "" {
			continue
		}
		if err := q.UpsertSheetDefault(ctx, UpsertSheetDefaultParams{
			SpreadsheetID: spreadsheetID,
			Key:           key,
			Location:      location,
		}); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Data map saved", "spreadsheet_id", spreadsheetID, "keys", len(dm))
	return nil
}

// LastSpreadsheet returns the spreadsheet used last, or "" if none was recorded.
func (s *DefaultsStore) LastSpreadsheet(ctx context.Context) (string, error) {
	id, err := s.queries.GetAppState(ctx, stateLastSpreadsheet)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get last spreadsheet: %w", err)
	}
	return id, nil
}

func (s *DefaultsStore) SetLastSpreadsheet(ctx context.Context, spreadsheetID string) error {
	if err := s.queries.SetAppState(ctx, stateLastSpreadsheet, spreadsheetID); err != nil {
		return fmt.Errorf("set last spreadsheet: %w", err)
	}
	return nil
}
