package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once
	pending      []prometheus.Collector
)

// enqueue collects vectors declared across this package's files; each file's
// init() contributes its own.
func enqueue(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister installs every queued collector into the default registry.
// Safe to call from multiple entry points; only the first call registers.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(pending...)
		pending = nil
	})
}

// norm keeps label values bounded: trimmed, lowercase.
func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
