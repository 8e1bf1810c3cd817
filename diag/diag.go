// Package diag exposes a unit's runtime counters over HTTP for interactive
// debugging, in the teacher's "optional side-channel, off unless opted
// into" style rather than a long-running metrics exporter.
//
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.
package diag

import (
	"encoding/json"
	"net/http"

	// Registers /debug/charts on http.DefaultServeMux, rendering
	// whatever the process has written through expvar as a live graph.
	_ "github.com/mkevac/debugcharts"

	"github.com/ohci1394/driver/ohci"
)

// Server serves a unit's Stats snapshot as JSON alongside debugcharts'
// live graphs, both on the same mux.
type Server struct {
	stats *ohci.Stats
	http  *http.Server
}

// New builds a diagnostics server bound to addr, exposing stats at
// /debug/ohci/stats and debugcharts' own handlers at /debug/charts.
func New(addr string, stats *ohci.Stats) *Server {
	mux := http.NewServeMux()
	mux.Handle("/debug/charts", http.DefaultServeMux)
	mux.Handle("/debug/charts/", http.DefaultServeMux)

	s := &Server{stats: stats}
	mux.HandleFunc("/debug/ohci/stats", s.serveStats)

	s.http = &http.Server{Addr: addr, Handler: mux}
	return s
}

func (s *Server) serveStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.stats.Snapshot())
}

// ListenAndServe blocks serving diagnostics until the server is closed.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Close shuts the diagnostics server down.
func (s *Server) Close() error {
	return s.http.Close()
}
