package handlers

import (
	"net/http"
	"time"
)

// HealthCheck reports the number of live tail sessions and the server time
// in unix milliseconds.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	sessions := 0
	if Sessions != nil {
		sessions = Sessions.Count()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"t":        time.Now().UnixMilli(),
	})
}
