// Package metrics provides a lightweight Prometheus-compatible metrics
// registry using only the standard library. It supports counters, gauges,
// and histograms with labels, renders the text exposition format, and can
// serve it over HTTP.
package metrics

import (
	"fmt"
	"log"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets are the default histogram buckets (in seconds).
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Counter is a monotonically increasing counter.
type Counter struct{ val atomic.Int64 }

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

// Gauge can go up and down.
type Gauge struct{ val atomic.Int64 }

func (g *Gauge) Set(n int64)  { g.val.Store(n) }
func (g *Gauge) Inc()         { g.val.Add(1) }
func (g *Gauge) Dec()         { g.val.Add(-1) }
func (g *Gauge) Value() int64 { return g.val.Load() }

// Histogram tracks the distribution of observed values in fixed buckets.
type Histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *Histogram {
	b := make([]float64, len(buckets))
	copy(b, buckets)
	sort.Float64s(b)
	return &Histogram{buckets: b, counts: make([]uint64, len(b))}
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	h.sum += v
	h.count++
	for i, b := range h.buckets {
		if v <= b {
			h.counts[i]++
			break
		}
	}
	h.mu.Unlock()
}

// Since observes the seconds elapsed since t.
func (h *Histogram) Since(t time.Time) {
	h.Observe(time.Since(t).Seconds())
}

func (h *Histogram) snapshot() ([]float64, []uint64, float64, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := make([]uint64, len(h.counts))
	copy(c, h.counts)
	return h.buckets, c, h.sum, h.count
}

type kind uint8

const (
	kindCounter kind = iota
	kindGauge
	kindHistogram
)

func (k kind) String() string {
	switch k {
	case kindCounter:
		return "counter"
	case kindGauge:
		return "gauge"
	default:
		return "histogram"
	}
}

// family groups every label combination of one metric name.
type family struct {
	name   string
	help   string
	kind   kind
	series map[string]any // label string -> *Counter/*Gauge/*Histogram
}

// Registry holds named metric families. All getters are get-or-create and
// safe for concurrent use; label values are passed as alternating key/value
// pairs.
type Registry struct {
	mu       sync.RWMutex
	families []*family
	byName   map[string]*family
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{byName: make(map[string]*family)}
}

func (r *Registry) family(name, help string, k kind) *family {
	f, ok := r.byName[name]
	if !ok {
		f = &family{name: name, help: help, kind: k, series: make(map[string]any)}
		r.byName[name] = f
		r.families = append(r.families, f)
	}
	return f
}

// labelString renders alternating key/value pairs as `k1="v1",k2="v2"`.
func labelString(kvs []string) string {
	if len(kvs) == 0 || len(kvs)%2 != 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(kvs); i += 2 {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", kvs[i], kvs[i+1])
	}
	return b.String()
}

// Counter returns the counter for name and the given label pairs.
func (r *Registry) Counter(name, help string, kvs ...string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.family(name, help, kindCounter)
	ls := labelString(kvs)
	if c, ok := f.series[ls]; ok {
		return c.(*Counter)
	}
	c := &Counter{}
	f.series[ls] = c
	return c
}

// Gauge returns the gauge for name and the given label pairs.
func (r *Registry) Gauge(name, help string, kvs ...string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.family(name, help, kindGauge)
	ls := labelString(kvs)
	if g, ok := f.series[ls]; ok {
		return g.(*Gauge)
	}
	g := &Gauge{}
	f.series[ls] = g
	return g
}

// Histogram returns the histogram for name and the given label pairs.
// Nil buckets use DefaultBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64, kvs ...string) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.family(name, help, kindHistogram)
	ls := labelString(kvs)
	if h, ok := f.series[ls]; ok {
		return h.(*Histogram)
	}
	h := newHistogram(buckets)
	f.series[ls] = h
	return h
}

// Render returns the Prometheus text exposition of every family, in
// registration order, with series sorted by label string.
func (r *Registry) Render() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, f := range r.families {
		if f.help != "" {
			fmt.Fprintf(&b, "# HELP %s %s\n", f.name, f.help)
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", f.name, f.kind)

		labels := make([]string, 0, len(f.series))
		for ls := range f.series {
			labels = append(labels, ls)
		}
		sort.Strings(labels)

		for _, ls := range labels {
			switch m := f.series[ls].(type) {
			case *Counter:
				fmt.Fprintf(&b, "%s%s %d\n", f.name, wrapLabels(ls), m.Value())
			case *Gauge:
				fmt.Fprintf(&b, "%s%s %d\n", f.name, wrapLabels(ls), m.Value())
			case *Histogram:
				buckets, counts, sum, count := m.snapshot()
				cumulative := uint64(0)
				for i, bk := range buckets {
					cumulative += counts[i]
					fmt.Fprintf(&b, "%s_bucket%s %d\n", f.name, wrapLabels(joinLabels(ls, fmt.Sprintf("le=%q", fmt.Sprintf("%g", bk)))), cumulative)
				}
				fmt.Fprintf(&b, "%s_bucket%s %d\n", f.name, wrapLabels(joinLabels(ls, `le="+Inf"`)), count)
				fmt.Fprintf(&b, "%s_sum%s %g\n", f.name, wrapLabels(ls), sum)
				fmt.Fprintf(&b, "%s_count%s %d\n", f.name, wrapLabels(ls), count)
			}
		}
	}
	return b.String()
}

func wrapLabels(ls string) string {
	if ls == "" {
		return ""
	}
	return "{" + ls + "}"
}

func joinLabels(ls, extra string) string {
	if ls == "" {
		return extra
	}
	return ls + "," + extra
}

// Handler returns an http.Handler serving the exposition format.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(r.Render()))
	})
}

// Serve starts an HTTP server on the given port serving /metrics.
func (r *Registry) Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}

// ServeAsync starts the metrics server in a goroutine. Errors are logged.
func (r *Registry) ServeAsync(port int) {
	go func() {
		if err := r.Serve(port); err != nil {
			log.Printf("metrics server error on port %d: %v", port, err)
		}
	}()
}

// CollectRuntime samples goroutine and heap gauges under the given prefix
// every interval, forever. Call once at process start.
func (r *Registry) CollectRuntime(prefix string, interval time.Duration) {
	goroutines := r.Gauge(prefix+"_goroutines", "Number of goroutines")
	heap := r.Gauge(prefix+"_heap_bytes", "Heap in use")
	gcs := r.Gauge(prefix+"_gc_cycles", "Completed GC cycles")
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var ms runtime.MemStats
		for range ticker.C {
			runtime.ReadMemStats(&ms)
			goroutines.Set(int64(runtime.NumGoroutine()))
			heap.Set(int64(ms.HeapInuse))
			gcs.Set(int64(ms.NumGC))
		}
	}()
}
