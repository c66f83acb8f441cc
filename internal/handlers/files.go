package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ghdquddnr/Termix-sub002/internal/hoststore"
	"github.com/ghdquddnr/Termix-sub002/internal/sshfiles"
	"github.com/ghdquddnr/Termix-sub002/internal/sshtail"
)

// BrowseFiles lists a remote directory so a client can pick a file to tail.
// Each request opens a short-lived SSH connection; browsing is rare enough
// that pooling is not worth the bookkeeping.
func BrowseFiles(w http.ResponseWriter, r *http.Request) {
	hostID := chi.URLParam(r, "id")
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "/"
	}

	creds, err := hoststore.Lookup(hostID)
	if err != nil {
		if errors.Is(err, hoststore.ErrHostNotFound) {
			writeError(w, http.StatusNotFound, "host not found")
		} else {
			writeError(w, http.StatusInternalServerError, "host lookup failed")
		}
		return
	}

	client, err := sshtail.Dial(creds)
	if err != nil {
		log.Printf("[files] dial %s: %v", hostID, err)
		writeError(w, http.StatusBadGateway, "ssh connection failed")
		return
	}
	defer client.Close()

	entries, err := sshfiles.ListDirectory(client, path)
	if err != nil {
		log.Printf("[files] list %s on %s: %v", path, hostID, err)
		writeError(w, http.StatusInternalServerError, "directory listing failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"path":    path,
		"entries": entries,
	})
}
