package memory

import (
	"context"
	"sync"

	"aspire/internal/sheets"
)

// ScriptCall is one recorded Apps Script invocation.
type ScriptCall struct {
	Function string
	Params   []any
}

// ScriptRunner records calls instead of executing them.
type ScriptRunner struct {
	mu    sync.Mutex
	calls []ScriptCall
	Err   error
}

var _ sheets.ScriptRunner = (*ScriptRunner)(nil)

func (r *ScriptRunner) Run(ctx context.Context, function string, params ...any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, ScriptCall{Function: function, Params: params})
	if r.Err != nil {
		return false, r.Err
	}
	return true, nil
}

func (r *ScriptRunner) Calls() []ScriptCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ScriptCall(nil), r.calls...)
}
