package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ghdquddnr/Termix-sub002/internal/database"
	"github.com/ghdquddnr/Termix-sub002/internal/hoststore"
)

type hostRequest struct {
	Name              string `json:"name"`
	Host              string `json:"host"`
	Port              int    `json:"port"`
	Username          string `json:"username"`
	Password          string `json:"password"`
	PrivateKey        string `json:"privateKey"`
	Passphrase        string `json:"passphrase"`
	ConnectTimeoutSec int    `json:"connectTimeoutSec"`
}

type hostResponse struct {
	ID                uint   `json:"id"`
	Name              string `json:"name"`
	Host              string `json:"host"`
	Port              int    `json:"port"`
	Username          string `json:"username"`
	HasPassword       bool   `json:"hasPassword"`
	HasPrivateKey     bool   `json:"hasPrivateKey"`
	ConnectTimeoutSec int    `json:"connectTimeoutSec"`
}

func toHostResponse(h *database.Host) hostResponse {
	return hostResponse{
		ID:                h.ID,
		Name:              h.Name,
		Host:              h.Host,
		Port:              h.Port,
		Username:          h.Username,
		HasPassword:       h.Password != "",
		HasPrivateKey:     h.PrivateKey != "",
		ConnectTimeoutSec: h.ConnectTimeoutSec,
	}
}

func ListHosts(w http.ResponseWriter, r *http.Request) {
	hosts, err := database.ListHosts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list hosts")
		return
	}
	out := make([]hostResponse, 0, len(hosts))
	for i := range hosts {
		out = append(out, toHostResponse(&hosts[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func GetHost(w http.ResponseWriter, r *http.Request) {
	host, err := findHost(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, database.ErrHostNotFound) {
			writeError(w, http.StatusNotFound, "host not found")
		} else {
			writeError(w, http.StatusInternalServerError, "failed to load host")
		}
		return
	}
	writeJSON(w, http.StatusOK, toHostResponse(host))
}

func CreateHost(w http.ResponseWriter, r *http.Request) {
	var req hostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Host == "" || req.Username == "" {
		writeError(w, http.StatusBadRequest, "name, host and username are required")
		return
	}
	if req.Password == "" && req.PrivateKey == "" {
		writeError(w, http.StatusBadRequest, "either password or privateKey is required")
		return
	}
	if req.Port == 0 {
		req.Port = 22
	}

	host := &database.Host{
		Name:              req.Name,
		Host:              req.Host,
		Port:              req.Port,
		Username:          req.Username,
		ConnectTimeoutSec: req.ConnectTimeoutSec,
	}
	if err := hoststore.Create(host, req.Password, req.PrivateKey, req.Passphrase); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create host: %v", err))
		return
	}
	writeJSON(w, http.StatusCreated, toHostResponse(host))
}

func DeleteHost(w http.ResponseWriter, r *http.Request) {
	host, err := findHost(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, database.ErrHostNotFound) {
			writeError(w, http.StatusNotFound, "host not found")
		} else {
			writeError(w, http.StatusInternalServerError, "failed to load host")
		}
		return
	}
	if err := database.DeleteHost(host.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete host")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// findHost resolves a path parameter as a numeric id first, then as a name.
func findHost(id string) (*database.Host, error) {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return database.GetHostByID(uint(n))
	}
	return database.GetHostByName(id)
}
