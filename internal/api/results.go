package api

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/logsentinel-project/logsentinel/internal/orchestrate"
)

// resultStore keeps the most recent completed analysis results in memory so
// they can be listed and re-fetched without re-running the analysis.
type resultStore struct {
	mu       sync.RWMutex
	results  []*orchestrate.Result
	maxStore int
}

func newResultStore(maxStore int) *resultStore {
	if maxStore <= 0 {
		maxStore = 100
	}
	return &resultStore{
		results:  make([]*orchestrate.Result, 0, maxStore),
		maxStore: maxStore,
	}
}

// Add stores a result, evicting the oldest when the store is full.
func (rs *resultStore) Add(result *orchestrate.Result) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.results = append(rs.results, result)
	if len(rs.results) > rs.maxStore {
		rs.results = rs.results[len(rs.results)-rs.maxStore:]
	}
}

// Recent returns up to limit results, newest first. limit <= 0 returns all.
func (rs *resultStore) Recent(limit int) []*orchestrate.Result {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	n := len(rs.results)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*orchestrate.Result, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, rs.results[i])
	}
	return out
}

// Get returns the stored result for a request ID, or nil.
func (rs *resultStore) Get(requestID string) *orchestrate.Result {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	for i := len(rs.results) - 1; i >= 0; i-- {
		if rs.results[i].RequestID == requestID {
			return rs.results[i]
		}
	}
	return nil
}

func (rs *resultStore) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.results)
}

// handleResults lists recent analysis results. ?id= fetches one by request
// ID; ?limit= caps the listing (newest first).
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if id := r.URL.Query().Get("id"); id != "" {
		result := s.results.Get(id)
		if result == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no result for request ID " + id})
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit: " + v})
			return
		}
		limit = n
	}

	results := s.results.Recent(limit)
	summaries := make([]map[string]interface{}, 0, len(results))
	for _, res := range results {
		summaries = append(summaries, map[string]interface{}{
			"request_id":      res.RequestID,
			"task":            res.Task,
			"generated_at":    res.GeneratedAt,
			"risk_score":      res.RiskScore,
			"risk_level":      res.RiskLevel,
			"attack_stage":    res.AttackStage,
			"confidence":      res.Confidence,
			"events_analyzed": res.EventsAnalyzed,
			"sequences":       len(res.Sequences),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": summaries,
		"total":   s.results.Len(),
	})
}
