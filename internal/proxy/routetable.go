// Package proxy implements the externally-visible HTTP surface: path-based
// request forwarding to the backend processes, health aggregation, and the
// static service info document.
package proxy

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/evaltools/evalgate/internal/config"
)

// Target identifies a backend by loopback host and port.
type Target struct {
	Host string
	Port int
}

// Addr returns the host:port form of the target.
func (t Target) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// URL returns the http base URL for the target.
func (t Target) URL() *url.URL {
	return &url.URL{
		Scheme: "http",
		Host:   t.Addr(),
	}
}

// Entry maps a path prefix to a backend target.
type Entry struct {
	Prefix string
	Target Target
}

// Table is an ordered, first-match-wins route table. It is constructed once
// at startup and never mutated afterward, so it is safe for unsynchronized
// concurrent reads.
type Table struct {
	entries []Entry
}

// NewTable builds the route table for the given proxy mode. WrapperOnly
// exposes only the /mcp prefix; Dual adds a catch-all entry forwarding every
// other path to the REST backend.
func NewTable(mode config.ProxyMode, rest, wrapper Target) *Table {
	entries := []Entry{
		{Prefix: "/mcp", Target: wrapper},
	}
	if mode == config.ModeDual {
		entries = append(entries, Entry{Prefix: "/", Target: rest})
	}
	return &Table{entries: entries}
}

// Resolve returns the target for the first entry whose prefix matches path.
// The boolean is false when no entry matches.
func (t *Table) Resolve(path string) (Target, bool) {
	for _, e := range t.entries {
		if matchPrefix(path, e.Prefix) {
			return e.Target, true
		}
	}
	return Target{}, false
}

// Entries returns the table contents in match order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// matchPrefix reports whether path falls under prefix on a path-segment
// boundary: "/mcp" matches "/mcp" and "/mcp/tools" but not "/mcpx".
func matchPrefix(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
