package transport

import (
	"net"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/tradecopy/relayd/internal/metrics"
	"github.com/tradecopy/relayd/internal/wire"
)

func TestPullServerDecodesFrames(t *testing.T) {
	ps := NewPullServer("127.0.0.1:0", 16, rate.Limit(100), 10)
	if err := ps.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ps.Stop()

	conn, err := net.Dial("tcp", ps.listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	msg := wire.RequestConfig{AccountID: "S1", Timestamp: time.Now()}
	if _, err := conn.Write(msg.Encode()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case frame := <-ps.Inbound():
		if frame.Kind != wire.KindRequestConfig {
			t.Fatalf("kind = %v", frame.Kind)
		}
		decoded, err := wire.DecodeRequestConfig(frame.Body)
		if err != nil {
			t.Fatalf("DecodeRequestConfig: %v", err)
		}
		if decoded.AccountID != "S1" {
			t.Fatalf("AccountID = %q", decoded.AccountID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound frame")
	}
}

func TestPubServerBroadcastsToSubscribers(t *testing.T) {
	m := metrics.New()
	pub := NewPubServer("127.0.0.1:0", m)
	if err := pub.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	go pub.Run()
	defer pub.Stop()

	conn, err := net.Dial("tcp", pub.listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// Give the accept loop a moment to register the subscriber before
	// publishing, since registration happens asynchronously.
	deadline := time.Now().Add(time.Second)
	for pub.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if pub.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", pub.SubscriberCount())
	}

	frame := wire.EncodeTopicFrame("group-1", []byte("payload"))
	pub.Publish(frame)

	buf := make([]byte, len(frame))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readFull(conn, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	topic, body, err := wire.DecodeTopicFrame(buf)
	if err != nil {
		t.Fatalf("DecodeTopicFrame: %v", err)
	}
	if topic != "group-1" || string(body) != "payload" {
		t.Fatalf("got topic=%q body=%q", topic, body)
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
