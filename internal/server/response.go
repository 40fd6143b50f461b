package server

import (
	"encoding/json"
	"net/http"

	"github.com/YuminosukeSato/mindscope/pkg/log"
)

// errorBody is the error shape every endpoint returns.
type errorBody struct {
	Detail any `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLoggerWithName("server").Error("failed to write response", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, errorBody{Detail: detail})
}
