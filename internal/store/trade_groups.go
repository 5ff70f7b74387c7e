package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

func joinIntsCSV(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func splitIntsCSV(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if v, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// CreateTradeGroup inserts a new group for masterAccountID with config
// version 0 and returns the persisted row. ErrConflict is returned if the
// Master already has a group.
func (s *Store) CreateTradeGroup(masterAccountID string, now int64) (*TradeGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := &TradeGroup{
		ID:              uuid.NewString(),
		MasterAccountID: masterAccountID,
		EnabledFlag:     true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	_, err := s.db.Exec(`
		INSERT INTO trade_groups (id, master_account_id, enabled_flag, symbol_prefix, symbol_suffix,
			runtime_status, warning_codes, config_version, created_at, updated_at)
		VALUES (?, ?, ?, '', '', 0, '', 0, ?, ?)`,
		g.ID, g.MasterAccountID, boolToInt(g.EnabledFlag), now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("%w: trade group for master %q", ErrConflict, masterAccountID)
		}
		return nil, fmt.Errorf("store: create trade group: %w", err)
	}
	return g, nil
}

func scanTradeGroup(row interface {
	Scan(dest ...any) error
}) (*TradeGroup, error) {
	var g TradeGroup
	var enabled int64
	var warnings string
	if err := row.Scan(&g.ID, &g.MasterAccountID, &enabled, &g.SymbolPrefix, &g.SymbolSuffix,
		&g.RuntimeStatus, &warnings, &g.ConfigVersion, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.EnabledFlag = intToBool(enabled)
	g.WarningCodes = splitIntsCSV(warnings)
	return &g, nil
}

const tradeGroupColumns = `id, master_account_id, enabled_flag, symbol_prefix, symbol_suffix,
	runtime_status, warning_codes, config_version, created_at, updated_at`

// GetTradeGroup fetches a group by id.
func (s *Store) GetTradeGroup(id string) (*TradeGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+tradeGroupColumns+` FROM trade_groups WHERE id = ?`, id)
	g, err := scanTradeGroup(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: trade group %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get trade group: %w", err)
	}
	return g, nil
}

// GetTradeGroupByMaster fetches a group by its Master's account id.
func (s *Store) GetTradeGroupByMaster(masterAccountID string) (*TradeGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+tradeGroupColumns+` FROM trade_groups WHERE master_account_id = ?`, masterAccountID)
	g, err := scanTradeGroup(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: trade group for master %q", ErrNotFound, masterAccountID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get trade group by master: %w", err)
	}
	return g, nil
}

// ListTradeGroups returns every persisted group, ordered by creation time.
func (s *Store) ListTradeGroups() ([]*TradeGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT ` + tradeGroupColumns + ` FROM trade_groups ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list trade groups: %w", err)
	}
	defer rows.Close()

	var out []*TradeGroup
	for rows.Next() {
		g, err := scanTradeGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan trade group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// SetTradeGroupIntent updates the Master-side enabled flag (web UI intent)
// without touching the cached runtime status; the caller is expected to
// re-run the status engine afterwards.
func (s *Store) SetTradeGroupIntent(id string, enabled bool, now int64) error {
	return s.updateTradeGroupField(id, "enabled_flag", boolToInt(enabled), now)
}

// SetTradeGroupSymbolSettings updates the Master's symbol prefix/suffix.
func (s *Store) SetTradeGroupSymbolSettings(id, prefix, suffix string, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE trade_groups SET symbol_prefix = ?, symbol_suffix = ?, updated_at = ? WHERE id = ?`,
		prefix, suffix, now, id)
	if err != nil {
		return fmt.Errorf("store: update trade group symbols: %w", err)
	}
	return checkRowsAffected(res, id)
}

func (s *Store) updateTradeGroupField(id, column string, value any, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(fmt.Sprintf(`UPDATE trade_groups SET %s = ?, updated_at = ? WHERE id = ?`, column), value, now, id)
	if err != nil {
		return fmt.Errorf("store: update trade group %s: %w", column, err)
	}
	return checkRowsAffected(res, id)
}

// UpdateTradeGroupRuntime writes the cached runtime status/warning codes
// computed by the status engine. Returns true if the stored values
// actually changed so callers can skip a redundant publish.
func (s *Store) UpdateTradeGroupRuntime(id string, status uint8, warnings []int, now int64) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var curStatus uint8
	var curWarnings string
	err = s.db.QueryRow(`SELECT runtime_status, warning_codes FROM trade_groups WHERE id = ?`, id).
		Scan(&curStatus, &curWarnings)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("%w: trade group %q", ErrNotFound, id)
	}
	if err != nil {
		return false, fmt.Errorf("store: read trade group runtime: %w", err)
	}

	newWarnings := joinIntsCSV(warnings)
	if curStatus == status && curWarnings == newWarnings {
		return false, nil
	}

	if _, err := s.db.Exec(`UPDATE trade_groups SET runtime_status = ?, warning_codes = ?, updated_at = ? WHERE id = ?`,
		status, newWarnings, now, id); err != nil {
		return false, fmt.Errorf("store: write trade group runtime: %w", err)
	}
	return true, nil
}

// BumpTradeGroupConfigVersion atomically increments the group's
// config_version and returns the new value. config_version never
// decreases and never repeats for a given group.
func (s *Store) BumpTradeGroupConfigVersion(id string, now int64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE trade_groups SET config_version = config_version + 1, updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return 0, fmt.Errorf("store: bump trade group config version: %w", err)
	}
	if err := checkRowsAffected(res, id); err != nil {
		return 0, err
	}
	var v uint64
	if err := s.db.QueryRow(`SELECT config_version FROM trade_groups WHERE id = ?`, id).Scan(&v); err != nil {
		return 0, fmt.Errorf("store: read bumped config version: %w", err)
	}
	return v, nil
}

// DeleteTradeGroup removes a group and cascades to its members.
func (s *Store) DeleteTradeGroup(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM trade_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete trade group: %w", err)
	}
	return checkRowsAffected(res, id)
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return nil
}
