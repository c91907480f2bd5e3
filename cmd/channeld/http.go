package main

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// newRouter builds the daemon's public JSON surface (spec.md §6), the
// nearest pack-grounded substitute for the teacher's gRPC lnrpc surface:
// gorilla/mux is already a teacher dependency and the library
// vechain-thor's api package uses for the same kind of REST/long-poll
// endpoint set.
func newRouter(d *daemon) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/channel/{id}", d.handleToJson).Methods(http.MethodGet)
	r.HandleFunc("/channel/{id}/wait", d.handleWaitForChange).Methods(http.MethodGet)
	r.HandleFunc("/channel/{id}/dispute", d.handleFileDispute).Methods(http.MethodPost)
	r.HandleFunc("/channel/{id}/move", d.handleProcessLocalMove).Methods(http.MethodPost)
	r.PathPrefix("/channel/{id}/ws").HandlerFunc(d.handleWebsocket)
	return r
}

func (d *daemon) entryFromRequest(w http.ResponseWriter, r *http.Request) (*channelEntry, bool) {
	idHex := mux.Vars(r)["id"]
	entry, ok := d.lookup(idHex)
	if !ok {
		http.Error(w, "unknown channel", http.StatusNotFound)
		return nil, false
	}
	return entry, true
}

func (d *daemon) handleToJson(w http.ResponseWriter, r *http.Request) {
	entry, ok := d.entryFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, entry.manager.ToJson())
}

// handleWaitForChange implements the long-poll of spec.md §4.5 over HTTP:
// it blocks inside Manager.WaitForChange (which itself blocks on the
// manager's condition variable) and responds once a new version is
// observed. ?known=N selects the last version the caller already saw; it
// defaults to -1, which always blocks for the very next change.
func (d *daemon) handleWaitForChange(w http.ResponseWriter, r *http.Request) {
	entry, ok := d.entryFromRequest(w, r)
	if !ok {
		return
	}

	known := -1
	if s := r.URL.Query().Get("known"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			http.Error(w, "invalid known parameter", http.StatusBadRequest)
			return
		}
		known = v
	}

	idHex := entry.id.String()
	if d.metrics != nil {
		d.metrics.waitForChangeWait.WithLabelValues(idHex).Inc()
		defer d.metrics.waitForChangeWait.WithLabelValues(idHex).Dec()
	}

	writeJSON(w, entry.manager.WaitForChange(known))
}

func (d *daemon) handleFileDispute(w http.ResponseWriter, r *http.Request) {
	entry, ok := d.entryFromRequest(w, r)
	if !ok {
		return
	}
	entry.manager.FileDispute()
	writeJSON(w, entry.manager.ToJson())
}

func (d *daemon) handleProcessLocalMove(w http.ResponseWriter, r *http.Request) {
	entry, ok := d.entryFromRequest(w, r)
	if !ok {
		return
	}

	move, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	entry.manager.ProcessLocalMove(move)
	writeJSON(w, entry.manager.ToJson())
}

func (d *daemon) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	entry, ok := d.entryFromRequest(w, r)
	if !ok {
		return
	}
	entry.hub.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		chndLog.Errorf("failed to write JSON response: %v", err)
	}
}
