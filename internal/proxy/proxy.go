package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/google/uuid"
)

// Router forwards inbound requests to the backend selected by the route
// table and relays the response byte-for-byte. It never re-encodes or
// transforms the payload, performs exactly one forwarding attempt per
// request, and converts transport failures into plain-text 500 responses.
type Router struct {
	table     *Table
	transport *http.Transport
	timeout   time.Duration
	logger    *slog.Logger
}

// NewRouter creates a Router with the given route table and per-request
// timeout.
func NewRouter(table *Table, timeout time.Duration, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	dialer := net.Dialer{
		Timeout: timeout,
	}
	// Every forward opens a fresh outbound connection; backend connections
	// are not pooled or reused across requests.
	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		DialContext:       dialer.DialContext,
		DisableKeepAlives: true,
	}
	return &Router{
		table:     table,
		transport: transport,
		timeout:   timeout,
		logger:    logger.With("component", "Router"),
	}
}

// ServeHTTP resolves the request path against the route table and proxies to
// the matched backend. Unmatched paths get an explicit 404; in dual mode the
// catch-all entry means every path matches.
func (p *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()

	target, ok := p.table.Resolve(r.URL.Path)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		p.logger.Info("No route found", "traceID", traceID, "path", r.URL.Path)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
	defer cancel()
	r = r.WithContext(ctx)
	r.Header.Set("X-Trace-ID", traceID)

	reverseProxy := httputil.NewSingleHostReverseProxy(target.URL())
	reverseProxy.Transport = p.transport
	reverseProxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		p.logger.Error("Proxy error", "traceID", traceID, "path", r.URL.Path, "target", target.Addr(), "error", err)
		http.Error(w, fmt.Sprintf("Proxy error: %v", err), http.StatusInternalServerError)
	}

	p.logger.Info("Forwarding request",
		"traceID", traceID, "method", r.Method, "path", r.URL.Path, "target", target.Addr())
	reverseProxy.ServeHTTP(w, r)
}
