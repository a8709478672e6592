// Package profiling mounts pprof and runtime statistics on the API router.
// The endpoints expose stacks and memory contents; serve enables them only
// when server.profiling is set, behind the same authentication as /v1.
package profiling

import (
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/go-chi/chi/v5"

	"github.com/conduit-lang/rowfilter/internal/web/response"
)

// Config holds profiling configuration
type Config struct {
	// Path is the URL prefix, "/debug/pprof" by default
	Path string

	// BlockRate sets the block profiling rate (0 = disabled)
	BlockRate int

	// MutexFraction sets the mutex profiling fraction (0 = disabled)
	MutexFraction int
}

// DefaultConfig returns default profiling configuration
func DefaultConfig() *Config {
	return &Config{
		Path:          "/debug/pprof",
		BlockRate:     0,
		MutexFraction: 0,
	}
}

// Mount registers the pprof handlers and /stats under config.Path. Extra
// middleware, such as authentication, wraps every route.
func Mount(router chi.Router, config *Config, mws ...func(http.Handler) http.Handler) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Path == "" {
		config.Path = "/debug/pprof"
	}

	runtime.SetBlockProfileRate(config.BlockRate)
	runtime.SetMutexProfileFraction(config.MutexFraction)

	router.Route(config.Path, func(r chi.Router) {
		r.Use(mws...)

		r.HandleFunc("/", pprof.Index)
		r.HandleFunc("/cmdline", pprof.Cmdline)
		r.HandleFunc("/profile", pprof.Profile)
		r.HandleFunc("/symbol", pprof.Symbol)
		r.HandleFunc("/trace", pprof.Trace)

		for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
			r.Handle("/"+name, pprof.Handler(name))
		}

		r.Get("/stats", StatsHandler())
	})
}

// Stats is a snapshot of runtime counters
type Stats struct {
	Goroutines int         `json:"goroutines"`
	NumCPU     int         `json:"num_cpu"`
	Memory     MemoryStats `json:"memory"`
}

// MemoryStats holds heap counters in bytes
type MemoryStats struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
}

// RuntimeStats returns current runtime statistics
func RuntimeStats() Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return Stats{
		Goroutines: runtime.NumGoroutine(),
		NumCPU:     runtime.NumCPU(),
		Memory: MemoryStats{
			Alloc:      m.Alloc,
			TotalAlloc: m.TotalAlloc,
			Sys:        m.Sys,
			NumGC:      m.NumGC,
		},
	}
}

// StatsHandler serves RuntimeStats as JSON
func StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.RenderJSON(w, http.StatusOK, RuntimeStats())
	}
}
