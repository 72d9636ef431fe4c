// Package health exposes the HTTP health surface: current worker
// states, spool depth and the most recent JobSummary, generalized from
// a prior health server that tracked device counts and InfluxDB
// connectivity instead.
package health

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fusioninventory/netdiscovery/internal/model"
	"github.com/fusioninventory/netdiscovery/internal/workerpool"
	"github.com/rs/zerolog/log"
)

// Depther is the subset of *spool.Spool the health surface polls.
type Depther interface {
	Depth() (int, error)
}

// Server serves /health, /health/live and /health/ready.
type Server struct {
	Port      int
	Spool     Depther
	startTime time.Time

	mu      sync.RWMutex
	workers []*workerpool.Worker
	last    *model.JobSummary
}

// NewServer returns a Server with no workers and no completed job yet;
// the job driver calls SetWorkers (through the Coordinator's
// OnWorkersReady hook) and SetLastSummary as a job starts and finishes.
func NewServer(port int, sp Depther) *Server {
	return &Server{Port: port, Spool: sp, startTime: time.Now()}
}

// SetWorkers records the current job's worker pool, or nil between jobs.
func (s *Server) SetWorkers(workers []*workerpool.Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = workers
}

// SetLastSummary records the most recently finished job's summary.
func (s *Server) SetLastSummary(summary model.JobSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &summary
}

// Start begins serving in a background goroutine, panic-recovered the
// same way the rest of this agent's background goroutines are.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/health/live", s.livenessHandler)
	mux.HandleFunc("/health/ready", s.readinessHandler)

	addr := fmt.Sprintf(":%d", s.Port)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("health server panic recovered")
			}
		}()
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	log.Info().Str("address", addr).Msg("health endpoint started")
}

// Response is the /health JSON body.
type Response struct {
	Status        string         `json:"status"`
	Uptime        string         `json:"uptime"`
	WorkerStates  []string       `json:"worker_states"`
	SpoolDepth    int            `json:"spool_depth"`
	SpoolOK       bool           `json:"spool_ok"`
	LastJob       *model.JobSummary `json:"last_job,omitempty"`
	Goroutines    int            `json:"goroutines"`
	MemoryMB      uint64         `json:"memory_mb"`
	RSSMB         uint64         `json:"rss_mb"`
	Timestamp     time.Time      `json:"timestamp"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := s.metrics()
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) metrics() Response {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	s.mu.RLock()
	workers := s.workers
	last := s.last
	s.mu.RUnlock()

	states := make([]string, len(workers))
	for i, w := range workers {
		states[i] = w.Slot.State().String()
	}

	var depth int
	spoolOK := s.Spool != nil
	if spoolOK {
		var err error
		depth, err = s.Spool.Depth()
		spoolOK = err == nil
	}

	status := "healthy"
	if !spoolOK {
		status = "degraded"
	}

	return Response{
		Status:       status,
		Uptime:       time.Since(s.startTime).String(),
		WorkerStates: states,
		SpoolDepth:   depth,
		SpoolOK:      spoolOK,
		LastJob:      last,
		Goroutines:   runtime.NumGoroutine(),
		MemoryMB:     m.Alloc / 1024 / 1024,
		RSSMB:        getRSSMB(),
		Timestamp:    time.Now(),
	}
}

// readinessHandler reports ready once the spool directory is reachable.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.Spool != nil {
		if _, err := s.Spool.Depth(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("NOT READY: spool unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}

// livenessHandler reports alive whenever the process can respond at all.
func (s *Server) livenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ALIVE"))
}

// getRSSMB reads /proc/self/status and parses VmRSS (kB) into MB. Linux
// only; returns 0 elsewhere or on failure.
func getRSSMB() uint64 {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return 0
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "VmRSS:") {
			fields := strings.Fields(line)
			if len(fields) >= 3 && fields[2] == "kB" {
				if kb, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
					return kb / 1024
				}
			}
		}
	}
	return 0
}
