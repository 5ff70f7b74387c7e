package store

import (
	"errors"
	"os"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "relayd-store-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := New(Config{DataDir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTradeGroupCRUD(t *testing.T) {
	s := newTestStore(t)

	g, err := s.CreateTradeGroup("M1", 1000)
	if err != nil {
		t.Fatalf("CreateTradeGroup: %v", err)
	}
	if g.ConfigVersion != 0 {
		t.Fatalf("new group config_version = %d, want 0", g.ConfigVersion)
	}

	got, err := s.GetTradeGroupByMaster("M1")
	if err != nil {
		t.Fatalf("GetTradeGroupByMaster: %v", err)
	}
	if got.ID != g.ID {
		t.Fatalf("ID mismatch: %q vs %q", got.ID, g.ID)
	}

	if _, err := s.CreateTradeGroup("M1", 1001); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate master, got %v", err)
	}

	if err := s.DeleteTradeGroup(g.ID); err != nil {
		t.Fatalf("DeleteTradeGroup: %v", err)
	}
	if _, err := s.GetTradeGroup(g.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestTradeGroupConfigVersionMonotonic(t *testing.T) {
	s := newTestStore(t)
	g, err := s.CreateTradeGroup("M1", 1000)
	if err != nil {
		t.Fatalf("CreateTradeGroup: %v", err)
	}

	var last uint64
	for i := 0; i < 5; i++ {
		v, err := s.BumpTradeGroupConfigVersion(g.ID, 1000+int64(i))
		if err != nil {
			t.Fatalf("BumpTradeGroupConfigVersion: %v", err)
		}
		if v <= last {
			t.Fatalf("config_version did not strictly increase: %d -> %d", last, v)
		}
		last = v
	}
}

func TestMemberCRUDAndCascadeDelete(t *testing.T) {
	s := newTestStore(t)
	g, err := s.CreateTradeGroup("M1", 1000)
	if err != nil {
		t.Fatalf("CreateTradeGroup: %v", err)
	}

	mult := 1.5
	m, err := s.CreateMember(&TradeGroupMember{
		GroupID:        g.ID,
		SlaveAccountID: "S1",
		EnabledFlag:    true,
		LotMode:        "multiplier",
		Multiplier:     &mult,
		SyncPolicy:     "full",
	}, 1000)
	if err != nil {
		t.Fatalf("CreateMember: %v", err)
	}

	if _, err := s.CreateMember(&TradeGroupMember{GroupID: g.ID, SlaveAccountID: "S1"}, 1001); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate member, got %v", err)
	}

	members, err := s.ListMembers(g.ID)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(members) != 1 || members[0].ID != m.ID {
		t.Fatalf("ListMembers = %+v", members)
	}

	changed, err := s.UpdateMemberRuntime(m.ID, 2, []int{}, true, 1002)
	if err != nil {
		t.Fatalf("UpdateMemberRuntime: %v", err)
	}
	if !changed {
		t.Fatalf("expected first runtime write to report changed")
	}
	changed, err = s.UpdateMemberRuntime(m.ID, 2, []int{}, true, 1003)
	if err != nil {
		t.Fatalf("UpdateMemberRuntime: %v", err)
	}
	if changed {
		t.Fatalf("expected identical runtime write to report unchanged")
	}

	// Deleting the group must cascade-remove its members (FK ON DELETE
	// CASCADE requires foreign_keys pragma, enabled in the DSN).
	if err := s.DeleteTradeGroup(g.ID); err != nil {
		t.Fatalf("DeleteTradeGroup: %v", err)
	}
	if _, err := s.GetMember(m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected member gone after cascade delete, got %v", err)
	}
}

func TestMemberSettingsRoundTripSymbolAndMagicLists(t *testing.T) {
	s := newTestStore(t)
	g, err := s.CreateTradeGroup("M1", 1000)
	if err != nil {
		t.Fatalf("CreateTradeGroup: %v", err)
	}

	m, err := s.CreateMember(&TradeGroupMember{
		GroupID:        g.ID,
		SlaveAccountID: "S1",
		AllowedSymbols: []string{"EURUSD", "GBPUSD"},
		BlockedMagic:   []int64{12345},
	}, 1000)
	if err != nil {
		t.Fatalf("CreateMember: %v", err)
	}

	got, err := s.GetMember(m.ID)
	if err != nil {
		t.Fatalf("GetMember: %v", err)
	}
	if len(got.AllowedSymbols) != 2 {
		t.Fatalf("AllowedSymbols = %+v", got.AllowedSymbols)
	}
	if len(got.BlockedMagic) != 1 || got.BlockedMagic[0] != 12345 {
		t.Fatalf("BlockedMagic = %+v", got.BlockedMagic)
	}
}
