package publisher

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/tradecopy/relayd/internal/metrics"
	"github.com/tradecopy/relayd/internal/statusengine"
	"github.com/tradecopy/relayd/internal/store"
	"github.com/tradecopy/relayd/internal/transport"
	"github.com/tradecopy/relayd/internal/wire"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "relayd-publisher-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	st, err := store.New(store.Config{DataDir: dir})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestPublishSlaveBumpsVersionAndEmits(t *testing.T) {
	st := newTestStore(t)
	g, err := st.CreateTradeGroup("M1", 1000)
	if err != nil {
		t.Fatalf("CreateTradeGroup: %v", err)
	}
	member, err := st.CreateMember(&store.TradeGroupMember{
		GroupID:        g.ID,
		SlaveAccountID: "S1",
		LotMode:        "multiplier",
		SyncPolicy:     "full",
	}, 1000)
	if err != nil {
		t.Fatalf("CreateMember: %v", err)
	}

	m := metrics.New()
	pub := transport.NewPubServer("127.0.0.1:0", m)
	if err := pub.Start(); err != nil {
		t.Fatalf("pub.Start: %v", err)
	}
	go pub.Run()
	defer pub.Stop()

	conn, err := net.Dial("tcp", pub.ListenAddr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for pub.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	p := New(st, pub, m)
	result := statusengine.MemberResult{Status: statusengine.StatusConnected, AllowNewOrders: true}
	if err := p.PublishSlave(member, result, nil, time.Now()); err != nil {
		t.Fatalf("PublishSlave: %v", err)
	}

	got, err := st.GetMember(member.ID)
	if err != nil {
		t.Fatalf("GetMember: %v", err)
	}
	if got.ConfigVersion != 1 {
		t.Fatalf("config_version = %d, want 1", got.ConfigVersion)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	topic, body, err := wire.DecodeTopicFrame(buf[:n])
	if err != nil {
		t.Fatalf("DecodeTopicFrame: %v", err)
	}
	if topic != "S1" {
		t.Fatalf("topic = %q, want S1", topic)
	}
	kind, frameBody, err := wire.DecodeFrameBytes(body)
	if err != nil {
		t.Fatalf("frame decode: %v", err)
	}
	if kind != wire.KindSlaveConfig {
		t.Fatalf("kind = %v", kind)
	}
	cfg, err := wire.DecodeSlaveConfig(frameBody)
	if err != nil {
		t.Fatalf("DecodeSlaveConfig: %v", err)
	}
	if cfg.ConfigVersion != 1 || !cfg.AllowNewOrders {
		t.Fatalf("cfg = %+v", cfg)
	}
}

// TestPublishMasterBumpsVersion exercises the Master-side emission path.
func TestPublishMasterBumpsVersion(t *testing.T) {
	st := newTestStore(t)
	g, err := st.CreateTradeGroup("M1", 1000)
	if err != nil {
		t.Fatalf("CreateTradeGroup: %v", err)
	}

	m := metrics.New()
	pub := transport.NewPubServer("127.0.0.1:0", m)
	if err := pub.Start(); err != nil {
		t.Fatalf("pub.Start: %v", err)
	}
	go pub.Run()
	defer pub.Stop()

	p := New(st, pub, m)
	result := statusengine.MasterResult{Status: statusengine.StatusConnected}
	if err := p.PublishMaster(g, result, time.Now()); err != nil {
		t.Fatalf("PublishMaster: %v", err)
	}

	got, err := st.GetTradeGroup(g.ID)
	if err != nil {
		t.Fatalf("GetTradeGroup: %v", err)
	}
	if got.ConfigVersion != 1 {
		t.Fatalf("config_version = %d, want 1", got.ConfigVersion)
	}
}
