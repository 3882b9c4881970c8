package handlers

import (
	"encoding/json"
	"net/http"

	"novahub/pkg/logging"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).WarnContext(r.Context(), "handlers - write json - encode failed", logging.Err(err))
	}
}
