package metrics

import (
	"encoding/json"
	"net/http"
	"time"
)

// RouteStatus is the per-route slice of a status snapshot.
type RouteStatus struct {
	Upstream    string        `json:"upstream"`
	State       string        `json:"state"`
	Failures    int           `json:"failures"`
	LastFailure time.Time     `json:"last_failure,omitzero"`
	Healthy     bool          `json:"healthy"`
	AvgResponse time.Duration `json:"avg_response"`
}

// Snapshot is a point-in-time view of every route's breaker and upstream.
type Snapshot struct {
	Uptime time.Duration          `json:"uptime"`
	Routes map[string]RouteStatus `json:"routes"`
}

// StatusHandler serves the JSON snapshot produced by source.
func StatusHandler(source func() Snapshot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := source()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
