package ingest

import (
	"net"
	"os"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/tradecopy/relayd/internal/copyengine"
	"github.com/tradecopy/relayd/internal/handler"
	"github.com/tradecopy/relayd/internal/metrics"
	"github.com/tradecopy/relayd/internal/publisher"
	"github.com/tradecopy/relayd/internal/registry"
	"github.com/tradecopy/relayd/internal/statusengine"
	"github.com/tradecopy/relayd/internal/store"
	"github.com/tradecopy/relayd/internal/transport"
	"github.com/tradecopy/relayd/internal/updater"
	"github.com/tradecopy/relayd/internal/wire"
)

func TestIngestLoopDrivesHandler(t *testing.T) {
	dir, err := os.MkdirTemp("", "relayd-ingest-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)
	st, err := store.New(store.Config{DataDir: dir})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer st.Close()

	m := metrics.New()
	pub := transport.NewPubServer("127.0.0.1:0", m)
	if err := pub.Start(); err != nil {
		t.Fatalf("pub.Start: %v", err)
	}
	go pub.Run()
	defer pub.Stop()

	pull := transport.NewPullServer("127.0.0.1:0", 16, rate.Limit(100), 10)
	if err := pull.Start(); err != nil {
		t.Fatalf("pull.Start: %v", err)
	}
	defer pull.Stop()

	reg := registry.New()
	pubComponent := publisher.New(st, pub, m)
	u := updater.New(reg, st, pubComponent, nil, m)
	engine := copyengine.New(m)
	h := handler.New(reg, st, u, engine, pub, nil, m)

	loop := New(pull, h)
	loop.Start()

	g, err := st.CreateTradeGroup("M1", time.Now().Unix())
	if err != nil {
		t.Fatalf("CreateTradeGroup: %v", err)
	}
	if _, err := st.CreateMember(&store.TradeGroupMember{GroupID: g.ID, SlaveAccountID: "S1", SyncPolicy: "full"}, time.Now().Unix()); err != nil {
		t.Fatalf("CreateMember: %v", err)
	}

	conn, err := net.Dial("tcp", pull.ListenAddrForTest())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	hb := wire.Heartbeat{AccountID: "M1", Role: wire.RoleMaster, TradeAllowed: true, Timestamp: time.Now()}
	if _, err := conn.Write(hb.Encode()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		group, err := st.GetTradeGroup(g.ID)
		if err != nil {
			t.Fatalf("GetTradeGroup: %v", err)
		}
		if statusengine.RuntimeStatus(group.RuntimeStatus) == statusengine.StatusConnected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for heartbeat to propagate through ingest loop")
}
