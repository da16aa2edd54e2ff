package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aspire/internal/core"
	applog "aspire/internal/log"
	"aspire/internal/services"
	"aspire/internal/sheets"
)

// dataMap returns the stored DataMap for a spreadsheet, or the fallback.
func (s *Server) dataMap(ctx context.Context, spreadsheetID string) (core.DataMap, error) {
	if s.deps.Defaults != nil {
		dm, err := s.deps.Defaults.DataMap(ctx, spreadsheetID)
		if err != nil {
			return nil, err
		}
		if len(dm) > 0 {
			return dm, nil
		}
	}
	return s.deps.FallbackDataMap, nil
}

// withDataMap resolves the spreadsheet ID and DataMap before calling fn.
func (s *Server) withDataMap(op string, fn func(w http.ResponseWriter, r *http.Request, id string, dm core.DataMap)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		dm, err := s.dataMap(r.Context(), id)
		if err != nil {
			s.fail(w, r, op, err)
			return
		}
		fn(w, r, id, dm)
	}
}

func (s *Server) handleLastSpreadsheet(w http.ResponseWriter, r *http.Request) {
	if s.deps.Defaults == nil {
		writeJSON(w, http.StatusOK, map[string]string{"spreadsheet_id": ""})
		return
	}
	id, err := s.deps.Defaults.LastSpreadsheet(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"spreadsheet_id": id})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request, id string, dm core.DataMap) {
	v, err := s.deps.Content.Version(r.Context(), id, dm)
	if err != nil {
		s.fail(w, r, applog.OpResolveVersion, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"version": v.String()})
}

type tableResponse struct {
	Rows core.RawTable `json:"rows"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, id string, dm core.DataMap) {
	d, err := s.deps.Content.Dashboard(r.Context(), id, dm)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, tableResponse{Rows: nonNilTable(d.Rows)})
}

func (s *Server) handleAccountBalances(w http.ResponseWriter, r *http.Request, id string, dm core.DataMap) {
	ab, err := s.deps.Content.AccountBalances(r.Context(), id, dm)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, tableResponse{Rows: nonNilTable(ab.Rows)})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request, id string, dm core.DataMap) {
	ts, err := s.deps.Content.Transactions(r.Context(), id, dm)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	if q := sanitizeInput(r.URL.Query().Get("q")); q != "" {
		ts = ts.Filter(q)
	}
	if where := r.URL.Query().Get("where"); where != "" {
		f, err := s.filters.Compile(where)
		if err != nil {
			s.fail(w, r, applog.OpRead, err)
			return
		}
		if ts, err = f.Apply(ts); err != nil {
			s.fail(w, r, applog.OpRead, err)
			return
		}
	}
	out := make([]transactionJSON, 0, len(ts.Transactions))
	for _, t := range ts.Transactions {
		out = append(out, toTransactionJSON(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request, id string, dm core.DataMap) {
	c, err := s.deps.Content.TrxCategories(r.Context(), id, dm)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"categories": nonNil(c.Categories)})
}

func (s *Server) handleTransactionMetadata(w http.ResponseWriter, r *http.Request, id string, dm core.DataMap) {
	md, err := s.deps.Content.AddTransactionMetadata(r.Context(), id, dm)
	if err != nil {
		s.fail(w, r, applog.OpReadBatch, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"categories": nonNil(md.Categories),
		"accounts":   nonNil(md.Accounts),
		"payees":     nonNil(md.Payees),
	})
}

func (s *Server) handleGetDataMap(w http.ResponseWriter, r *http.Request, id string, dm core.DataMap) {
	if dm == nil {
		dm = core.DataMap{}
	}
	writeJSON(w, http.StatusOK, map[string]core.DataMap{"data_map": dm})
}

// handlePutDataMap replaces the stored DataMap. The cached version is dropped
// since the version cell may have moved.
func (s *Server) handlePutDataMap(w http.ResponseWriter, r *http.Request) {
	if s.deps.Defaults == nil {
		writeError(w, http.StatusNotImplemented, "no defaults store configured")
		return
	}
	id := chi.URLParam(r, "id")

	var req struct {
		DataMap map[string]string `json:"data_map"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpWrite, err)
		return
	}
	dm := make(core.DataMap, len(req.DataMap))
	for k, v := range req.DataMap {
		k, v = sanitizeInput(k), sanitizeInput(v)
		if k == "" || v == "" {
			continue
		}
		if _, err := sheets.ParseRange(v); err != nil {
			s.fail(w, r, applog.OpWrite, err)
			return
		}
		dm[k] = v
	}

	if err := s.deps.Defaults.SaveDataMap(r.Context(), id, dm); err != nil {
		s.fail(w, r, applog.OpWrite, err)
		return
	}
	s.deps.Content.Versions().Forget(id)
	writeJSON(w, http.StatusOK, map[string]core.DataMap{"data_map": dm})
}

type submissionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// writeSubmission answers 202 for queued submissions and 201 for applied ones.
func writeSubmission(w http.ResponseWriter, r *http.Request, spreadsheetID, dataset string, res services.Result) {
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogSubmission(r.Context(), spreadsheetID, dataset, res.Queued)
	if res.Queued {
		writeJSON(w, http.StatusAccepted, submissionResponse{ID: res.ID, Status: "queued"})
		return
	}
	writeJSON(w, http.StatusCreated, submissionResponse{ID: res.ID, Status: "written"})
}

// handleSubmitTransaction queues the transaction when a broker is configured
// and applies it directly otherwise. The DataMap is resolved by the worker.
func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpSubmit, err)
		return
	}
	t, err := req.toTransaction(s.now())
	if err != nil {
		s.fail(w, r, applog.OpSubmit, err)
		return
	}

	res, err := s.deps.Submissions.SubmitTransaction(r.Context(), id, nil, t, req.AddViaScript)
	if err != nil {
		s.fail(w, r, applog.OpSubmit, err)
		return
	}
	writeSubmission(w, r, id, core.KeyTransactions, res)
}

func (s *Server) handleSubmitCategoryTransfer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req categoryTransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpSubmit, err)
		return
	}
	ct, err := req.toCategoryTransfer()
	if err != nil {
		s.fail(w, r, applog.OpSubmit, err)
		return
	}

	res, err := s.deps.Submissions.SubmitCategoryTransfer(r.Context(), id, nil, ct)
	if err != nil {
		s.fail(w, r, applog.OpSubmit, err)
		return
	}
	writeSubmission(w, r, id, core.KeyCategoryTransfers, res)
}

// handleRollover runs the template's monthly budget top-up script. The
// script acts on the spreadsheet its project is bound to, so {id} must name
// that spreadsheet when it is known.
func (s *Server) handleRollover(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scripts == nil {
		s.fail(w, r, applog.OpRunScript, errNoScriptRunner)
		return
	}
	id := chi.URLParam(r, "id")
	if bound := s.deps.ScriptSpreadsheetID; bound != "" && id != bound {
		s.fail(w, r, applog.OpRunScript, fmt.Errorf("%w: %s", errScriptSpreadsheet, bound))
		return
	}
	ok, err := s.deps.Scripts.Run(r.Context(), sheets.FunctionTopUpMonthlyBudget)
	if err != nil {
		s.fail(w, r, applog.OpRunScript, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilTable(t core.RawTable) core.RawTable {
	if t == nil {
		return core.RawTable{}
	}
	return t
}
