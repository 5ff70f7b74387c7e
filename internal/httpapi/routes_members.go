package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tradecopy/relayd/internal/store"
	"github.com/tradecopy/relayd/internal/wire"
)

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	members, err := s.store.ListMembers(groupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) findMemberBySlave(groupID, slaveAccountID string) (*store.TradeGroupMember, error) {
	members, err := s.store.ListMembers(groupID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if m.SlaveAccountID == slaveAccountID {
			return m, nil
		}
	}
	return nil, store.ErrNotFound
}

type memberSettingsRequest struct {
	EnabledFlag       bool                 `json:"enabled_flag"`
	LotMode           string               `json:"lot_mode"`
	Multiplier        *float64             `json:"multiplier"`
	ReverseTrade      bool                 `json:"reverse_trade"`
	SymbolPrefix      string               `json:"symbol_prefix"`
	SymbolSuffix      string               `json:"symbol_suffix"`
	SymbolMappings    []wire.SymbolMapping `json:"symbol_mappings"`
	CopyPendingOrders bool                 `json:"copy_pending_orders"`
	SourceLotMin      *float64             `json:"source_lot_min"`
	SourceLotMax      *float64             `json:"source_lot_max"`
	AllowedSymbols    []string             `json:"allowed_symbols"`
	BlockedSymbols    []string             `json:"blocked_symbols"`
	AllowedMagic      []int64              `json:"allowed_magic_numbers"`
	BlockedMagic      []int64              `json:"blocked_magic_numbers"`
	SyncPolicy        string               `json:"sync_policy"`
	MaxSlippagePoints int                  `json:"max_slippage_points"`
}

func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	var body struct {
		SlaveAccountID string `json:"slave_account_id"`
		memberSettingsRequest
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	now := time.Now()
	m := &store.TradeGroupMember{
		GroupID:           groupID,
		SlaveAccountID:    body.SlaveAccountID,
		EnabledFlag:       body.EnabledFlag,
		LotMode:           body.LotMode,
		Multiplier:        body.Multiplier,
		ReverseTrade:      body.ReverseTrade,
		SymbolPrefix:      body.SymbolPrefix,
		SymbolSuffix:      body.SymbolSuffix,
		SymbolMappings:    body.SymbolMappings,
		CopyPendingOrders: body.CopyPendingOrders,
		SourceLotMin:      body.SourceLotMin,
		SourceLotMax:      body.SourceLotMax,
		AllowedSymbols:    body.AllowedSymbols,
		BlockedSymbols:    body.BlockedSymbols,
		AllowedMagic:      body.AllowedMagic,
		BlockedMagic:      body.BlockedMagic,
		SyncPolicy:        body.SyncPolicy,
		MaxSlippagePoints: body.MaxSlippagePoints,
	}
	created, err := s.store.CreateMember(m, now.Unix())
	if err != nil {
		writeError(w, storeErrStatus(err), err.Error())
		return
	}
	if err := s.updater.ReevaluateMember(created.ID, now); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	refreshed, err := s.store.GetMember(created.ID)
	if err != nil {
		writeError(w, storeErrStatus(err), err.Error())
		return
	}
	s.hub.Notify("member_added", refreshed)
	writeJSON(w, http.StatusCreated, refreshed)
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	groupID, slave := r.PathValue("id"), r.PathValue("slave")
	member, err := s.findMemberBySlave(groupID, slave)
	if err != nil {
		writeError(w, storeErrStatus(err), err.Error())
		return
	}
	var body memberSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	now := time.Now()
	member.LotMode = body.LotMode
	member.Multiplier = body.Multiplier
	member.ReverseTrade = body.ReverseTrade
	member.SymbolPrefix = body.SymbolPrefix
	member.SymbolSuffix = body.SymbolSuffix
	member.SymbolMappings = body.SymbolMappings
	member.CopyPendingOrders = body.CopyPendingOrders
	member.SourceLotMin = body.SourceLotMin
	member.SourceLotMax = body.SourceLotMax
	member.AllowedSymbols = body.AllowedSymbols
	member.BlockedSymbols = body.BlockedSymbols
	member.AllowedMagic = body.AllowedMagic
	member.BlockedMagic = body.BlockedMagic
	member.SyncPolicy = body.SyncPolicy
	member.MaxSlippagePoints = body.MaxSlippagePoints

	if err := s.store.UpdateMemberSettings(member, now.Unix()); err != nil {
		writeError(w, storeErrStatus(err), err.Error())
		return
	}
	if err := s.updater.ReevaluateMember(member.ID, now); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	refreshed, err := s.store.GetMember(member.ID)
	if err != nil {
		writeError(w, storeErrStatus(err), err.Error())
		return
	}
	s.hub.Notify("member_runtime_update", refreshed)
	writeJSON(w, http.StatusOK, refreshed)
}

type toggleMemberRequest struct {
	EnabledFlag bool `json:"enabled_flag"`
}

func (s *Server) handleToggleMember(w http.ResponseWriter, r *http.Request) {
	groupID, slave := r.PathValue("id"), r.PathValue("slave")
	member, err := s.findMemberBySlave(groupID, slave)
	if err != nil {
		writeError(w, storeErrStatus(err), err.Error())
		return
	}
	var body toggleMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	now := time.Now()
	if err := s.store.SetMemberIntent(member.ID, body.EnabledFlag, now.Unix()); err != nil {
		writeError(w, storeErrStatus(err), err.Error())
		return
	}
	if err := s.updater.ReevaluateMember(member.ID, now); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	refreshed, err := s.store.GetMember(member.ID)
	if err != nil {
		writeError(w, storeErrStatus(err), err.Error())
		return
	}
	s.hub.Notify("member_runtime_update", refreshed)
	writeJSON(w, http.StatusOK, refreshed)
}

func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	groupID, slave := r.PathValue("id"), r.PathValue("slave")
	member, err := s.findMemberBySlave(groupID, slave)
	if err != nil {
		writeError(w, storeErrStatus(err), err.Error())
		return
	}
	if err := s.store.DeleteMember(member.ID); err != nil {
		writeError(w, storeErrStatus(err), err.Error())
		return
	}
	s.hub.Notify("member_deleted", map[string]string{"member_id": member.ID, "group_id": groupID, "slave": slave})
	w.WriteHeader(http.StatusNoContent)
}
