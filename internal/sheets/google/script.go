package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goption "google.golang.org/api/option"
	gscript "google.golang.org/api/script/v1"

	ports "aspire/internal/sheets"
)

var ErrScriptFailed = errors.New("apps script execution failed")

// ScriptClient runs functions of one deployed Apps Script project.
type ScriptClient struct {
	svc      *gscript.Service
	scriptID string
	logger   *slog.Logger
}

var _ ports.ScriptRunner = (*ScriptClient)(nil)

func NewScriptClient(ctx context.Context, scriptID string, logger *slog.Logger, opts ...goption.ClientOption) (*ScriptClient, error) {
	if scriptID == "" {
		return nil, errors.New("missing Apps Script ID")
	}
	svc, err := gscript.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create script service: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScriptClient{svc: svc, scriptID: scriptID, logger: logger}, nil
}

// Run executes function and reports whether the execution finished. A script
// error is returned wrapped in ErrScriptFailed.
func (c *ScriptClient) Run(ctx context.Context, function string, params ...any) (bool, error) {
	req := &gscript.ExecutionRequest{Function: function}
	if len(params) > 0 {
		req.Parameters = params
	}
	op, err := c.svc.Scripts.Run(c.scriptID, req).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("run %s: %w", function, err)
	}
	if op.Error != nil {
		c.logger.WarnContext(ctx, "Apps Script reported an error",
			"function", function,
			"code", op.Error.Code,
			"message", op.Error.Message)
		return false, fmt.Errorf("%w: %s: %s", ErrScriptFailed, function, op.Error.Message)
	}
	c.logger.InfoContext(ctx, "Apps Script executed", "function", function, "done", op.Done)
	return op.Done, nil
}
