package httpapi

import (
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/tradecopy/relayd/internal/registry"
)

// connectionView decorates a registry snapshot with human-readable
// renderings of the fields the dashboard prints directly, so the frontend
// doesn't need to duplicate number/duration formatting.
type connectionView struct {
	registry.Snapshot
	BalanceDisplay string `json:"balance_display"`
	EquityDisplay  string `json:"equity_display"`
	LastSeen       string `json:"last_seen"`
}

func newConnectionView(snap registry.Snapshot) connectionView {
	v := connectionView{Snapshot: snap}
	v.BalanceDisplay = humanize.CommafWithDigits(snap.Balance, 2)
	v.EquityDisplay = humanize.CommafWithDigits(snap.Equity, 2)
	if snap.LastHeartbeat.IsZero() {
		v.LastSeen = "never"
	} else {
		v.LastSeen = humanize.Time(snap.LastHeartbeat)
	}
	return v
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	conns := s.registry.All()
	views := make([]connectionView, 0, len(conns))
	for _, c := range conns {
		views = append(views, newConnectionView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, ok := s.registry.Snapshot(id)
	if !ok {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}
	writeJSON(w, http.StatusOK, newConnectionView(snap))
}
