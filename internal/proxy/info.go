package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/evaltools/evalgate/internal/config"
)

// InfoHandler serves GET / with a static description of the service
// topology. It is a pure function of the server configuration; no backend
// calls are made.
type InfoHandler struct {
	doc map[string]any
}

// NewInfoHandler builds the info document from cfg.
func NewInfoHandler(cfg *config.Config) *InfoHandler {
	endpoints := map[string]string{
		"mcp_wrapper": fmt.Sprintf("http://localhost:%d/mcp", cfg.ExternalPort),
	}
	if cfg.Mode == config.ModeDual {
		endpoints["rest_api"] = fmt.Sprintf("http://localhost:%d/", cfg.ExternalPort)
	}
	doc := map[string]any{
		"service":   cfg.ServiceName,
		"version":   cfg.Version,
		"endpoints": endpoints,
		"protocols": []string{"MCP over HTTP/SSE"},
	}
	return &InfoHandler{doc: doc}
}

func (h *InfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload, err := json.Marshal(h.doc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}
