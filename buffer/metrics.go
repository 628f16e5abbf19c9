package buffer

import "github.com/prometheus/client_golang/prometheus"

// PoolMetrics counts what the pool does to its frames. Counters are created
// unregistered so that standalone pools (and tests) carry no global state;
// call Register to expose them.
type PoolMetrics struct {
	Hits       prometheus.Counter
	Misses     prometheus.Counter
	Evictions  prometheus.Counter
	Writebacks prometheus.Counter
	Flushes    prometheus.Counter
}

func NewPoolMetrics() *PoolMetrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ember",
			Subsystem: "buffer",
			Name:      name,
			Help:      help,
		})
	}

	return &PoolMetrics{
		Hits:       counter("hits_total", "Fetches served from a resident frame."),
		Misses:     counter("misses_total", "Fetches that had to read the page from disk."),
		Evictions:  counter("evictions_total", "Pages evicted to make room for another."),
		Writebacks: counter("writebacks_total", "Dirty pages written to disk during eviction."),
		Flushes:    counter("flushes_total", "Explicit page flushes."),
	}
}

func (m *PoolMetrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(m.Hits, m.Misses, m.Evictions, m.Writebacks, m.Flushes)
}
