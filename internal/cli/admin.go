package cli

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/keshwara/gatekit/internal/metrics"
	"github.com/keshwara/gatekit/pkg/commands"
	"github.com/keshwara/gatekit/pkg/pipeline"
)

// registerAdminRoutes exposes the command-level surface over HTTP for
// operators. The chat-command layer consumes the same commands.Service.
func registerAdminRoutes(mux *http.ServeMux, svc *commands.Service, pipe *pipeline.Pipeline, prom *metrics.Metrics) {
	mux.HandleFunc("/v1/tools", func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q != "" {
			writeJSON(w, svc.SearchTools(q, 20))
			return
		}
		writeJSON(w, svc.ListTools())
	})

	mux.HandleFunc("/v1/approvals", func(w http.ResponseWriter, r *http.Request) {
		pending, err := svc.ListPendingApprovals(r.Context(), r.URL.Query().Get("scope"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, pending)
	})

	mux.HandleFunc("/v1/approvals/decide", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			GateID  string `json:"gate_id"`
			Actor   string `json:"actor"`
			Approve bool   `json:"approve"`
			Reason  string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var err error
		status := "rejected"
		if req.Approve {
			status = "approved"
			_, err = svc.Approve(r.Context(), req.GateID, req.Actor)
		} else {
			_, err = svc.Reject(r.Context(), req.GateID, req.Actor, req.Reason)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if prom != nil {
			prom.ApprovalDecisionsTotal.WithLabelValues(status).Inc()
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/v1/invoke", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Tool  string                 `json:"tool"`
			Input map[string]interface{} `json:"input"`
			Call  pipeline.CallContext   `json:"call"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result, err := pipe.Invoke(r.Context(), req.Tool, req.Input, req.Call)
		if err != nil {
			log.Debug().Err(err).Str("tool", req.Tool).Msg("Invocation returned execution error")
		}
		writeJSON(w, result)
	})

	mux.HandleFunc("/v1/anomalies", func(w http.ResponseWriter, r *http.Request) {
		anomalies, err := svc.LatestAnomalies(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, anomalies)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}
