package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Vipr728/Cascadia/pkg/relay/analysis"
)

// LatestAnalysisHandler serves the most recently completed call analysis.
type LatestAnalysisHandler struct {
	Logger  *slog.Logger
	Records *analysis.FileStore
}

func (h LatestAnalysisHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "invalid_request", "method not allowed", "")
		return
	}

	rec, err := h.Records.Latest()
	if err != nil {
		if errors.Is(err, analysis.ErrNoAnalyses) {
			writeError(w, r, http.StatusNotFound, "not_found", "no analyses recorded yet", "")
			return
		}
		if h.Logger != nil {
			h.Logger.Error("reading latest analysis failed", "error", err)
		}
		writeError(w, r, http.StatusInternalServerError, "api_error", "failed to read latest analysis", "")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(rec)
}
