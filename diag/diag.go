// Package diag exposes a read-only HTTP admin surface over a running
// node: per-service stats and a process-wide snapshot, plus a
// cron-driven periodic log of the same snapshot. Grounded on the
// teacher's modules/chimux router (go-chi/chi/v5 route registration
// style) and modules/scheduler's robfig/cron/v3 usage for the periodic
// job; json-iterator/go replaces encoding/json for response bodies,
// matching the stack's other wire-encoding choices.
package diag

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/robfig/cron/v3"

	"github.com/hiveworks/hive"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Server is the admin HTTP surface for one Node.
type Server struct {
	node   *hive.Node
	router chi.Router
	cron   *cron.Cron
}

// New builds a Server wired to node's live-service stats. Call Handler
// to mount it, and StartReporting to begin periodic STAT logging.
func New(node *hive.Node) *Server {
	s := &Server{node: node, router: chi.NewRouter()}
	s.router.Get("/services", s.handleServices)
	s.router.Get("/services/{handle}", s.handleService)
	s.router.Get("/stat", s.handleStat)
	return s
}

// Handler returns the http.Handler to mount (directly, or under a prefix
// via chi's Mount).
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.node.Stats())
}

func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "handle")
	h, err := strconv.ParseUint(raw, 16, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed handle"})
		return
	}
	for _, stat := range s.node.Stats() {
		if uint64(stat.Handle) == h {
			writeJSON(w, http.StatusOK, stat)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "handle not found"})
}

func (s *Server) handleStat(w http.ResponseWriter, r *http.Request) {
	stats := s.node.Stats()
	var totalMailbox, totalCPU int64
	endless := 0
	for _, st := range stats {
		totalMailbox += int64(st.MailboxN)
		totalCPU += st.CPUTicks
		if st.Endless {
			endless++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"services":        len(stats),
		"total_mailbox":   totalMailbox,
		"total_cpu_ticks": totalCPU,
		"endless":         endless,
		"start_time":      s.node.StartTime(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonAPI.NewEncoder(w).Encode(v)
}

// StartReporting schedules a periodic STAT snapshot log line at the given
// cron expression (e.g. "@every 30s", "*/1 * * * *"). Returns the cron
// entry id, for StopReporting.
func (s *Server) StartReporting(spec string) (cron.EntryID, error) {
	if s.cron == nil {
		s.cron = cron.New()
		s.cron.Start()
	}
	return s.cron.AddFunc(spec, func() {
		stats := s.node.Stats()
		s.node.Logger().Info("stat snapshot",
			"services", len(stats),
			"uptime", time.Since(s.node.StartTime()).String())
	})
}

// StopReporting stops the periodic reporter started by StartReporting.
func (s *Server) StopReporting() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
}
