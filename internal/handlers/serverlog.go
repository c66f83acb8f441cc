package handlers

import (
	"net/http"
	"strconv"

	"github.com/ghdquddnr/Termix-sub002/internal/logging"
)

// GetServerLog returns the tail of the relay's own log file.
func GetServerLog(w http.ResponseWriter, r *http.Request) {
	lines := 200
	if v := r.URL.Query().Get("lines"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			lines = n
		}
	}
	out, err := logging.ReadTail(lines)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"log": out})
}
