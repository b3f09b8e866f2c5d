// Package pprof keeps the net/http/pprof import, and its registration on the
// default mux, out of the packages a library user imports. Only the command
// line tool mounts it next to the metrics.
package pprof

import (
	"net/http"
	"net/http/pprof"
)

// WithProfile returns the handler to mount at /debug/pprof/. Named profiles
// such as heap or goroutine are served by the index handler.
func WithProfile() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return mux
}
