package wire

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestRecordRoundTrip(t *testing.T) {
	b := NewRecordBuilder().
		SetString(TagAccountID, "ACC-1").
		SetUint64(TagNumericAccount, 123456).
		SetFloat64(TagBalance, 1000.5).
		SetBool(TagTradeAllowed, true).
		SetInt64(TagMagicNumber, -42)
	data := b.Encode()

	rec, err := DecodeRecord(data)
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if v, _ := rec.String(TagAccountID); v != "ACC-1" {
		t.Errorf("AccountID = %q", v)
	}
	if v, _ := rec.Uint64(TagNumericAccount); v != 123456 {
		t.Errorf("NumericAccount = %d", v)
	}
	if v, _ := rec.Float64(TagBalance); v != 1000.5 {
		t.Errorf("Balance = %v", v)
	}
	if v, _ := rec.Bool(TagTradeAllowed); v != true {
		t.Errorf("TradeAllowed = %v", v)
	}
	if v, _ := rec.Int64(TagMagicNumber); v != -42 {
		t.Errorf("MagicNumber = %d", v)
	}
}

func TestRecordFieldOrderDeterministic(t *testing.T) {
	a := NewRecordBuilder().SetUint64(5, 1).SetUint64(1, 2).SetUint64(3, 3).Encode()
	b := NewRecordBuilder().SetUint64(3, 3).SetUint64(5, 1).SetUint64(1, 2).Encode()
	if string(a) != string(b) {
		t.Fatalf("field order not deterministic: %x vs %x", a, b)
	}
}

func TestDecodeRecordMalformed(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"truncated header", []byte{1}},
		{"truncated length varint", []byte{1, byte(WireString), 0xFF}},
		{"length exceeds buffer", []byte{1, byte(WireString), 5, 'a', 'b'}},
		{"unknown wire type", []byte{1, 9, 0}},
		{"bad float length", func() []byte {
			return []byte{1, byte(WireFloat64), 2, 0, 0}
		}()},
		{"invalid utf8 string", []byte{1, byte(WireString), 1, 0xFF}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := DecodeRecord(c.data)
			if !errors.Is(err, ErrMalformedFrame) {
				t.Fatalf("expected ErrMalformedFrame, got %v", err)
			}
		})
	}
}

func TestTopicFrameRoundTrip(t *testing.T) {
	body := []byte{1, 2, 3}
	framed := EncodeTopicFrame("group-1", body)
	topic, decoded, err := DecodeTopicFrame(framed)
	if err != nil {
		t.Fatalf("DecodeTopicFrame: %v", err)
	}
	if topic != "group-1" {
		t.Errorf("topic = %q", topic)
	}
	if string(decoded) != string(body) {
		t.Errorf("body = %x", decoded)
	}
}

func TestDecodeTopicFrameMissingSeparator(t *testing.T) {
	_, _, err := DecodeTopicFrame([]byte{1, 2, 3})
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestHeartbeatRoundTrip(t *testing.T) {
	ts := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	hb := Heartbeat{
		AccountID:      "M1",
		Role:           RoleMaster,
		Platform:       "MT5",
		NumericAccount: 555111,
		Broker:         "Acme Broker",
		Server:         "Acme-Live",
		Balance:        10000,
		Equity:         9876.54,
		Currency:       "USD",
		Leverage:       100,
		TradeAllowed:   true,
		Timestamp:      ts,
	}
	kind, body, err := ReadFrameBytes(hb.Encode())
	if err != nil {
		t.Fatalf("ReadFrameBytes: %v", err)
	}
	if kind != KindHeartbeat {
		t.Fatalf("kind = %v", kind)
	}
	got, err := DecodeHeartbeat(body)
	if err != nil {
		t.Fatalf("DecodeHeartbeat: %v", err)
	}
	if got.AccountID != hb.AccountID || got.Role != hb.Role || got.NumericAccount != hb.NumericAccount {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, ts)
	}
}

func TestTradeSignalOptionalFields(t *testing.T) {
	ts := time.Now().UTC().Truncate(time.Second)
	sig := TradeSignal{
		SourceAccountID: "M1",
		Action:          "open",
		Ticket:          42,
		Symbol:          "XAUUSD.m",
		OrderType:       "buy",
		Lots:            1.5,
		Timestamp:       ts,
	}
	_, body, err := ReadFrameBytes(sig.Encode())
	if err != nil {
		t.Fatalf("ReadFrameBytes: %v", err)
	}
	got, err := DecodeTradeSignal(body)
	if err != nil {
		t.Fatalf("DecodeTradeSignal: %v", err)
	}
	if got.OpenPrice != nil || got.StopLoss != nil || got.MagicNumber != nil {
		t.Errorf("expected nil optional fields, got %+v", got)
	}
	if got.Symbol != "XAUUSD.m" {
		t.Errorf("Symbol = %q", got.Symbol)
	}
}

func TestSlaveConfigRoundTrip(t *testing.T) {
	mult := 2.0
	lotMin := 0.01
	cfg := SlaveConfig{
		AccountID:      "S1",
		Status:         2,
		WarningCodes:   nil,
		AllowNewOrders: true,
		ConfigVersion:  7,
		LotMode:        "multiplier",
		Multiplier:     &mult,
		SymbolSuffix:   ".pro",
		SymbolMappings: []SymbolMapping{{From: "XAUUSD", To: "GOLD"}},
		SourceLotMin:   &lotMin,
		AllowedSymbols: []string{"EURUSD", "GBPUSD"},
		BlockedMagic:   []int64{12345},
		Timestamp:      time.Now().UTC().Truncate(time.Second),
	}
	_, body, err := ReadFrameBytes(cfg.Encode())
	if err != nil {
		t.Fatalf("ReadFrameBytes: %v", err)
	}
	got, err := DecodeSlaveConfig(body)
	if err != nil {
		t.Fatalf("DecodeSlaveConfig: %v", err)
	}
	if got.Multiplier == nil || *got.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v", got.Multiplier)
	}
	if len(got.SymbolMappings) != 1 || got.SymbolMappings[0].To != "GOLD" {
		t.Errorf("SymbolMappings = %+v", got.SymbolMappings)
	}
	if len(got.BlockedMagic) != 1 || got.BlockedMagic[0] != 12345 {
		t.Errorf("BlockedMagic = %+v", got.BlockedMagic)
	}
	if len(got.AllowedSymbols) != 2 {
		t.Errorf("AllowedSymbols = %+v", got.AllowedSymbols)
	}
}

func TestGlobalSettingsRoundTrip(t *testing.T) {
	gs := GlobalSettings{
		Blob:      map[string]string{"maintenance": "false"},
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
	_, body, err := ReadFrameBytes(gs.Encode())
	if err != nil {
		t.Fatalf("ReadFrameBytes: %v", err)
	}
	got, err := DecodeGlobalSettings(body)
	if err != nil {
		t.Fatalf("DecodeGlobalSettings: %v", err)
	}
	if got.Blob["maintenance"] != "false" {
		t.Errorf("Blob = %+v", got.Blob)
	}
}

// ReadFrameBytes is a small test helper wrapping ReadFrame for in-memory
// encoded frames (production code reads frames off a net.Conn instead).
func ReadFrameBytes(framed []byte) (MessageKind, []byte, error) {
	return ReadFrame(bytes.NewReader(framed))
}
