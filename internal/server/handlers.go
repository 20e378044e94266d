package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/bid-cli/internal/chat"
	"github.com/sells-group/bid-cli/internal/compare"
	"github.com/sells-group/bid-cli/internal/model"
	"github.com/sells-group/bid-cli/internal/report"
	"github.com/sells-group/bid-cli/internal/store"
)

const latestAlias = "latest"

type handlers struct {
	deps Deps
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{Status: model.RunStatus(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	runs, err := h.deps.Runs.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	for i := range runs {
		runs[i].Bids = model.BidSet{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// loadRun resolves the {runID} path parameter, writing the error response
// itself when the run cannot be loaded.
func (h *handlers) loadRun(w http.ResponseWriter, r *http.Request) (*model.ExtractionRun, bool) {
	id := chi.URLParam(r, "runID")

	var (
		run *model.ExtractionRun
		err error
	)
	if id == latestAlias {
		run, err = h.deps.Runs.LatestRun(r.Context())
	} else {
		run, err = h.deps.Runs.GetRun(r.Context(), id)
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		zap.L().Error("load run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return nil, false
	}
	return run, true
}

func (h *handlers) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// compareRun runs the comparison for the run in the request.
func (h *handlers) compareRun(w http.ResponseWriter, r *http.Request, fair bool) (compare.Result, bool) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return compare.Result{}, false
	}
	if run.Status != model.RunStatusComplete {
		writeError(w, http.StatusConflict, "run is "+string(run.Status))
		return compare.Result{}, false
	}

	res, err := compare.Run(compare.Request{Bids: run.Bids, Fair: fair, ZeroAsMissing: h.deps.ZeroAsMissing})
	if err != nil {
		zap.L().Error("compare run", zap.String("run_id", run.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "comparison failed")
		return compare.Result{}, false
	}
	return res, true
}

func fairParam(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("fair")
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func (h *handlers) comparison(w http.ResponseWriter, r *http.Request) {
	fair, err := fairParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "fair must be a boolean")
		return
	}
	res, ok := h.compareRun(w, r, fair)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) comparisonCSV(w http.ResponseWriter, r *http.Request) {
	fair, err := fairParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "fair must be a boolean")
		return
	}
	res, ok := h.compareRun(w, r, fair)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.Export(&buf, report.FormatCSV, res.Comparison); err != nil {
		zap.L().Error("export csv", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="bid_comparison.csv"`)
	_, _ = w.Write(buf.Bytes())
}

type askRequest struct {
	Question string `json:"question"`
	Fair     bool   `json:"fair"`
}

func (h *handlers) ask(w http.ResponseWriter, r *http.Request) {
	if h.deps.Asker == nil {
		writeError(w, http.StatusServiceUnavailable, "question answering is not configured")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, ok := h.compareRun(w, r, req.Fair)
	if !ok {
		return
	}

	ans, err := h.deps.Asker.Ask(r.Context(), report.RenderContext(res), req.Question)
	if errors.Is(err, chat.ErrEmptyQuestion) {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if err != nil {
		zap.L().Error("ask", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to answer question")
		return
	}
	writeJSON(w, http.StatusOK, ans)
}
