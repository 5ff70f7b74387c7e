package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tradecopy/relayd/internal/wire"
)

func joinInt64sCSV(vals []int64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}

func splitInt64sCSV(s string) []int64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		if v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func joinStringsCSV(vals []string) string {
	return strings.Join(vals, ",")
}

func splitStringsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func joinMappings(vals []wire.SymbolMapping) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.From + ":" + v.To
	}
	return strings.Join(parts, ";")
}

func splitMappings(s string) []wire.SymbolMapping {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]wire.SymbolMapping, 0, len(parts))
	for _, p := range parts {
		kv := strings.SplitN(p, ":", 2)
		if len(kv) == 2 {
			out = append(out, wire.SymbolMapping{From: kv[0], To: kv[1]})
		}
	}
	return out
}

// CreateMember adds a Slave to a Master's trade group. ErrConflict is
// returned if that Slave is already a member of this group.
func (s *Store) CreateMember(m *TradeGroupMember, now int64) (*TradeGroupMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = uuid.NewString()
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO trade_group_members (
			id, group_id, slave_account_id, enabled_flag, lot_mode, multiplier, reverse_trade,
			symbol_prefix, symbol_suffix, symbol_mappings, copy_pending_orders,
			source_lot_min, source_lot_max, allowed_symbols, blocked_symbols,
			allowed_magic_numbers, blocked_magic_numbers, sync_policy, max_slippage_points,
			runtime_status, warning_codes, allow_new_orders, config_version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, '', 0, 0, ?, ?)`,
		m.ID, m.GroupID, m.SlaveAccountID, boolToInt(m.EnabledFlag), m.LotMode, m.Multiplier,
		boolToInt(m.ReverseTrade), m.SymbolPrefix, m.SymbolSuffix, joinMappings(m.SymbolMappings),
		boolToInt(m.CopyPendingOrders), m.SourceLotMin, m.SourceLotMax,
		joinStringsCSV(m.AllowedSymbols), joinStringsCSV(m.BlockedSymbols),
		joinInt64sCSV(m.AllowedMagic), joinInt64sCSV(m.BlockedMagic),
		m.SyncPolicy, m.MaxSlippagePoints, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("%w: slave %q already in group %q", ErrConflict, m.SlaveAccountID, m.GroupID)
		}
		return nil, fmt.Errorf("store: create member: %w", err)
	}
	return m, nil
}

const memberColumns = `id, group_id, slave_account_id, enabled_flag, lot_mode, multiplier, reverse_trade,
	symbol_prefix, symbol_suffix, symbol_mappings, copy_pending_orders,
	source_lot_min, source_lot_max, allowed_symbols, blocked_symbols,
	allowed_magic_numbers, blocked_magic_numbers, sync_policy, max_slippage_points,
	runtime_status, warning_codes, allow_new_orders, config_version, created_at, updated_at`

func scanMember(row interface{ Scan(dest ...any) error }) (*TradeGroupMember, error) {
	var m TradeGroupMember
	var enabled, reverseTrade, copyPending, allowNew int64
	var mappings, allowedSym, blockedSym, allowedMagic, blockedMagic, warnings string
	err := row.Scan(
		&m.ID, &m.GroupID, &m.SlaveAccountID, &enabled, &m.LotMode, &m.Multiplier, &reverseTrade,
		&m.SymbolPrefix, &m.SymbolSuffix, &mappings, &copyPending,
		&m.SourceLotMin, &m.SourceLotMax, &allowedSym, &blockedSym,
		&allowedMagic, &blockedMagic, &m.SyncPolicy, &m.MaxSlippagePoints,
		&m.RuntimeStatus, &warnings, &allowNew, &m.ConfigVersion, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.EnabledFlag = intToBool(enabled)
	m.ReverseTrade = intToBool(reverseTrade)
	m.CopyPendingOrders = intToBool(copyPending)
	m.AllowNewOrders = intToBool(allowNew)
	m.SymbolMappings = splitMappings(mappings)
	m.AllowedSymbols = splitStringsCSV(allowedSym)
	m.BlockedSymbols = splitStringsCSV(blockedSym)
	m.AllowedMagic = splitInt64sCSV(allowedMagic)
	m.BlockedMagic = splitInt64sCSV(blockedMagic)
	m.WarningCodes = splitIntsCSV(warnings)
	return &m, nil
}

// GetMember fetches one member by id.
func (s *Store) GetMember(id string) (*TradeGroupMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+memberColumns+` FROM trade_group_members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: member %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get member: %w", err)
	}
	return m, nil
}

// ListMembers returns every member of a group, ordered by creation time.
func (s *Store) ListMembers(groupID string) ([]*TradeGroupMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT `+memberColumns+` FROM trade_group_members WHERE group_id = ? ORDER BY created_at ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("store: list members: %w", err)
	}
	defer rows.Close()

	var out []*TradeGroupMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListMembersBySlave returns every group edge this Slave account belongs
// to, across all Masters.
func (s *Store) ListMembersBySlave(slaveAccountID string) ([]*TradeGroupMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT `+memberColumns+` FROM trade_group_members WHERE slave_account_id = ?`, slaveAccountID)
	if err != nil {
		return nil, fmt.Errorf("store: list members by slave: %w", err)
	}
	defer rows.Close()

	var out []*TradeGroupMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateMemberSettings replaces every configurable field on a member
// except its intent flag, which is toggled separately via
// SetMemberIntent since the two are driven by different UI actions.
func (s *Store) UpdateMemberSettings(m *TradeGroupMember, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE trade_group_members SET
			lot_mode = ?, multiplier = ?, reverse_trade = ?,
			symbol_prefix = ?, symbol_suffix = ?, symbol_mappings = ?, copy_pending_orders = ?,
			source_lot_min = ?, source_lot_max = ?, allowed_symbols = ?, blocked_symbols = ?,
			allowed_magic_numbers = ?, blocked_magic_numbers = ?, sync_policy = ?,
			max_slippage_points = ?, updated_at = ?
		WHERE id = ?`,
		m.LotMode, m.Multiplier, boolToInt(m.ReverseTrade),
		m.SymbolPrefix, m.SymbolSuffix, joinMappings(m.SymbolMappings), boolToInt(m.CopyPendingOrders),
		m.SourceLotMin, m.SourceLotMax, joinStringsCSV(m.AllowedSymbols), joinStringsCSV(m.BlockedSymbols),
		joinInt64sCSV(m.AllowedMagic), joinInt64sCSV(m.BlockedMagic), m.SyncPolicy,
		m.MaxSlippagePoints, now, m.ID,
	)
	if err != nil {
		return fmt.Errorf("store: update member settings: %w", err)
	}
	return checkRowsAffected(res, m.ID)
}

// SetMemberIntent toggles the Slave-side web UI enabled flag.
func (s *Store) SetMemberIntent(id string, enabled bool, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE trade_group_members SET enabled_flag = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled), now, id)
	if err != nil {
		return fmt.Errorf("store: set member intent: %w", err)
	}
	return checkRowsAffected(res, id)
}

// UpdateMemberRuntime writes the cached runtime status/warnings/
// allow_new_orders computed by the status engine, returning whether
// anything actually changed.
func (s *Store) UpdateMemberRuntime(id string, status uint8, warnings []int, allowNewOrders bool, now int64) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var curStatus uint8
	var curWarnings string
	var curAllow int64
	err = s.db.QueryRow(`SELECT runtime_status, warning_codes, allow_new_orders FROM trade_group_members WHERE id = ?`, id).
		Scan(&curStatus, &curWarnings, &curAllow)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("%w: member %q", ErrNotFound, id)
	}
	if err != nil {
		return false, fmt.Errorf("store: read member runtime: %w", err)
	}

	newWarnings := joinIntsCSV(warnings)
	if curStatus == status && curWarnings == newWarnings && intToBool(curAllow) == allowNewOrders {
		return false, nil
	}

	if _, err := s.db.Exec(`UPDATE trade_group_members SET runtime_status = ?, warning_codes = ?, allow_new_orders = ?, updated_at = ? WHERE id = ?`,
		status, newWarnings, boolToInt(allowNewOrders), now, id); err != nil {
		return false, fmt.Errorf("store: write member runtime: %w", err)
	}
	return true, nil
}

// BumpMemberConfigVersion atomically increments the member's
// config_version and returns the new value.
func (s *Store) BumpMemberConfigVersion(id string, now int64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE trade_group_members SET config_version = config_version + 1, updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return 0, fmt.Errorf("store: bump member config version: %w", err)
	}
	if err := checkRowsAffected(res, id); err != nil {
		return 0, err
	}
	var v uint64
	if err := s.db.QueryRow(`SELECT config_version FROM trade_group_members WHERE id = ?`, id).Scan(&v); err != nil {
		return 0, fmt.Errorf("store: read bumped member config version: %w", err)
	}
	return v, nil
}

// DeleteMember removes a single Master->Slave edge.
func (s *Store) DeleteMember(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM trade_group_members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete member: %w", err)
	}
	return checkRowsAffected(res, id)
}
