package httpapi

import (
	"encoding/json"
	"net/http"
	"time"
)

func (s *Server) handleListTradeGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListTradeGroups()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleGetTradeGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.store.GetTradeGroup(r.PathValue("id"))
	if err != nil {
		writeError(w, storeErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type createTradeGroupRequest struct {
	MasterAccountID string `json:"master_account_id"`
}

func (s *Server) handleCreateTradeGroup(w http.ResponseWriter, r *http.Request) {
	var req createTradeGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	g, err := s.store.CreateTradeGroup(req.MasterAccountID, time.Now().Unix())
	if err != nil {
		writeError(w, storeErrStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

type updateTradeGroupRequest struct {
	EnabledFlag  bool   `json:"enabled_flag"`
	SymbolPrefix string `json:"symbol_prefix"`
	SymbolSuffix string `json:"symbol_suffix"`
}

func (s *Server) handleUpdateTradeGroup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	group, err := s.store.GetTradeGroup(id)
	if err != nil {
		writeError(w, storeErrStatus(err), err.Error())
		return
	}
	var req updateTradeGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	now := time.Now()
	if err := s.store.SetTradeGroupIntent(id, req.EnabledFlag, now.Unix()); err != nil {
		writeError(w, storeErrStatus(err), err.Error())
		return
	}
	if err := s.store.SetTradeGroupSymbolSettings(id, req.SymbolPrefix, req.SymbolSuffix, now.Unix()); err != nil {
		writeError(w, storeErrStatus(err), err.Error())
		return
	}
	if err := s.updater.ReevaluateMaster(group.MasterAccountID, now); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	updated, err := s.store.GetTradeGroup(id)
	if err != nil {
		writeError(w, storeErrStatus(err), err.Error())
		return
	}
	s.hub.Notify("trade_group_updated", updated)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTradeGroup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteTradeGroup(id); err != nil {
		writeError(w, storeErrStatus(err), err.Error())
		return
	}
	s.hub.Notify("trade_group_updated", map[string]any{"group_id": id, "deleted": true})
	w.WriteHeader(http.StatusNoContent)
}
