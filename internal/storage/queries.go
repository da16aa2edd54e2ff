package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type SheetDefault struct {
	Key      string
	Location string
}

const listSheetDefaults = `-- name: ListSheetDefaults :many
SELECT key, location FROM sheet_defaults
WHERE spreadsheet_id = ?
ORDER BY key
`

func (q *Queries) ListSheetDefaults(ctx context.Context, spreadsheetID string) ([]SheetDefault, error) {
	rows, err := q.db.QueryContext(ctx, listSheetDefaults, spreadsheetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SheetDefault
	for rows.Next() {
		var i SheetDefault
		if err := rows.Scan(&i.Key, &i.Location); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteSheetDefaults = `-- name: DeleteSheetDefaults :exec
DELETE FROM sheet_defaults WHERE spreadsheet_id = ?
`

func (q *Queries) DeleteSheetDefaults(ctx context.Context, spreadsheetID string) error {
	_, err := q.db.ExecContext(ctx, deleteSheetDefaults, spreadsheetID)
	return err
}

const upsertSheetDefault = `-- name: UpsertSheetDefault :exec
INSERT INTO sheet_defaults (spreadsheet_id, key, location, updated_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (spreadsheet_id, key) DO UPDATE SET
    location = excluded.location,
    updated_at = CURRENT_TIMESTAMP
`

type UpsertSheetDefaultParams struct {
	SpreadsheetID string
	Key           string
	Location      string
}

func (q *Queries) UpsertSheetDefault(ctx context.Context, arg UpsertSheetDefaultParams) error {
	_, err := q.db.ExecContext(ctx, upsertSheetDefault, arg.SpreadsheetID, arg.Key, arg.Location)
	return err
}

const getAppState = `-- name: GetAppState :one
SELECT value FROM app_state WHERE key = ?
`

func (q *Queries) GetAppState(ctx context.Context, key string) (string, error) {
	row := q.db.QueryRowContext(ctx, getAppState, key)
	var value string
	err := row.Scan(&value)
	return value, err
}

const setAppState = `-- name: SetAppState :exec
INSERT INTO app_state (key, value, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (key) DO UPDATE SET
    value = excluded.value,
    updated_at = CURRENT_TIMESTAMP
`

func (q *Queries) SetAppState(ctx context.Context, key, value string) error {
	_, err := q.db.ExecContext(ctx, setAppState, key, value)
	return err
}
