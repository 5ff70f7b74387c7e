package wire

import (
	"fmt"
	"time"

	"github.com/relvacode/iso8601"
)

// Role identifies which side of a trade-copy edge an account plays.
type Role string

const (
	RoleMaster Role = "master"
	RoleSlave  Role = "slave"
)

func encodeTimestamp(b *RecordBuilder, t time.Time) *RecordBuilder {
	return b.SetString(TagTimestamp, t.UTC().Format(time.RFC3339Nano))
}

func decodeTimestamp(rec Record) (time.Time, error) {
	s, err := rec.RequireString(TagTimestamp)
	if err != nil {
		return time.Time{}, err
	}
	t, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q: %v", ErrMalformedFrame, s, err)
	}
	return t, nil
}

// Register announces that an EA has come online and wants to join the
// relay; carries only the account id, role and timestamp, so the
// balance and trade-allowed facts arrive with the first Heartbeat.
type Register struct {
	AccountID string
	Role      Role
	Timestamp time.Time
}

func (m Register) Encode() []byte {
	b := NewRecordBuilder().
		SetString(TagAccountID, m.AccountID).
		SetString(TagRole, string(m.Role))
	encodeTimestamp(b, m.Timestamp)
	return EncodeFrame(KindRegister, b.Encode())
}

func DecodeRegister(body []byte) (*Register, error) {
	rec, err := DecodeRecord(body)
	if err != nil {
		return nil, err
	}
	accountID, err := rec.RequireString(TagAccountID)
	if err != nil {
		return nil, err
	}
	role, err := rec.RequireString(TagRole)
	if err != nil {
		return nil, err
	}
	ts, err := decodeTimestamp(rec)
	if err != nil {
		return nil, err
	}
	return &Register{AccountID: accountID, Role: Role(role), Timestamp: ts}, nil
}

// Unregister announces a clean EA shutdown.
type Unregister struct {
	AccountID string
	Timestamp time.Time
}

func (m Unregister) Encode() []byte {
	b := NewRecordBuilder().SetString(TagAccountID, m.AccountID)
	encodeTimestamp(b, m.Timestamp)
	return EncodeFrame(KindUnregister, b.Encode())
}

func DecodeUnregister(body []byte) (*Unregister, error) {
	rec, err := DecodeRecord(body)
	if err != nil {
		return nil, err
	}
	accountID, err := rec.RequireString(TagAccountID)
	if err != nil {
		return nil, err
	}
	ts, err := decodeTimestamp(rec)
	if err != nil {
		return nil, err
	}
	return &Unregister{AccountID: accountID, Timestamp: ts}, nil
}

// Heartbeat carries the liveness and account-state facts an EA reports
// on a fixed interval. Role, platform and broker facts are resent every
// beat rather than cached only at Register time, since a terminal can be
// restarted against a different broker/server without a clean unregister.
type Heartbeat struct {
	AccountID      string
	Role           Role
	Platform       string
	NumericAccount uint64
	Broker         string
	Server         string
	Balance        float64
	Equity         float64
	Currency       string
	Leverage       float64
	TradeAllowed   bool
	Timestamp      time.Time
}

func (m Heartbeat) Encode() []byte {
	b := NewRecordBuilder().
		SetString(TagAccountID, m.AccountID).
		SetString(TagRole, string(m.Role)).
		SetString(TagPlatform, m.Platform).
		SetUint64(TagNumericAccount, m.NumericAccount).
		SetString(TagBroker, m.Broker).
		SetString(TagServer, m.Server).
		SetFloat64(TagBalance, m.Balance).
		SetFloat64(TagEquity, m.Equity).
		SetString(TagCurrency, m.Currency).
		SetFloat64(TagLeverage, m.Leverage).
		SetBool(TagTradeAllowed, m.TradeAllowed)
	encodeTimestamp(b, m.Timestamp)
	return EncodeFrame(KindHeartbeat, b.Encode())
}

func DecodeHeartbeat(body []byte) (*Heartbeat, error) {
	rec, err := DecodeRecord(body)
	if err != nil {
		return nil, err
	}
	h := &Heartbeat{}
	if h.AccountID, err = rec.RequireString(TagAccountID); err != nil {
		return nil, err
	}
	role, err := rec.RequireString(TagRole)
	if err != nil {
		return nil, err
	}
	h.Role = Role(role)
	h.Platform, _ = rec.String(TagPlatform)
	h.NumericAccount, _ = rec.Uint64(TagNumericAccount)
	h.Broker, _ = rec.String(TagBroker)
	h.Server, _ = rec.String(TagServer)
	if h.Balance, err = rec.RequireFloat64(TagBalance); err != nil {
		return nil, err
	}
	if h.Equity, err = rec.RequireFloat64(TagEquity); err != nil {
		return nil, err
	}
	h.Currency, _ = rec.String(TagCurrency)
	h.Leverage, _ = rec.Float64(TagLeverage)
	if h.TradeAllowed, err = rec.RequireBool(TagTradeAllowed); err != nil {
		return nil, err
	}
	if h.Timestamp, err = decodeTimestamp(rec); err != nil {
		return nil, err
	}
	return h, nil
}

// TradeSignal is a Master-side trade event to be considered for copying.
type TradeSignal struct {
	SourceAccountID string
	Action          string // open, modify, close
	Ticket          uint64
	Symbol          string
	OrderType       string
	Lots            float64
	OpenPrice       *float64
	StopLoss        *float64
	TakeProfit      *float64
	MagicNumber     *int64
	Comment         string
	CloseRatio      *float64
	Timestamp       time.Time
}

func (m TradeSignal) Encode() []byte {
	b := NewRecordBuilder().
		SetString(TagSourceAccountID, m.SourceAccountID).
		SetString(TagAction, m.Action).
		SetUint64(TagTicket, m.Ticket).
		SetString(TagSymbol, m.Symbol).
		SetString(TagOrderType, m.OrderType).
		SetFloat64(TagLots, m.Lots).
		SetOptionalFloat64(TagOpenPrice, m.OpenPrice).
		SetOptionalFloat64(TagStopLoss, m.StopLoss).
		SetOptionalFloat64(TagTakeProfit, m.TakeProfit).
		SetOptionalInt64(TagMagicNumber, m.MagicNumber).
		SetString(TagComment, m.Comment).
		SetOptionalFloat64(TagCloseRatio, m.CloseRatio)
	encodeTimestamp(b, m.Timestamp)
	return EncodeFrame(KindTradeSignal, b.Encode())
}

func DecodeTradeSignal(body []byte) (*TradeSignal, error) {
	rec, err := DecodeRecord(body)
	if err != nil {
		return nil, err
	}
	s := &TradeSignal{}
	if s.SourceAccountID, err = rec.RequireString(TagSourceAccountID); err != nil {
		return nil, err
	}
	if s.Action, err = rec.RequireString(TagAction); err != nil {
		return nil, err
	}
	if s.Ticket, err = rec.RequireUint64(TagTicket); err != nil {
		return nil, err
	}
	if s.Symbol, err = rec.RequireString(TagSymbol); err != nil {
		return nil, err
	}
	s.OrderType, _ = rec.String(TagOrderType)
	if s.Lots, err = rec.RequireFloat64(TagLots); err != nil {
		return nil, err
	}
	s.OpenPrice = rec.OptionalFloat64(TagOpenPrice)
	s.StopLoss = rec.OptionalFloat64(TagStopLoss)
	s.TakeProfit = rec.OptionalFloat64(TagTakeProfit)
	s.MagicNumber = rec.OptionalInt64(TagMagicNumber)
	s.Comment, _ = rec.String(TagComment)
	s.CloseRatio = rec.OptionalFloat64(TagCloseRatio)
	if s.Timestamp, err = decodeTimestamp(rec); err != nil {
		return nil, err
	}
	return s, nil
}

// RequestConfig asks the relay to re-evaluate and re-emit the requester's
// own config frame out of band, independent of the normal change-driven
// emission path.
type RequestConfig struct {
	AccountID string
	Timestamp time.Time
}

func (m RequestConfig) Encode() []byte {
	b := NewRecordBuilder().SetString(TagAccountID, m.AccountID)
	encodeTimestamp(b, m.Timestamp)
	return EncodeFrame(KindRequestConfig, b.Encode())
}

func DecodeRequestConfig(body []byte) (*RequestConfig, error) {
	rec, err := DecodeRecord(body)
	if err != nil {
		return nil, err
	}
	accountID, err := rec.RequireString(TagAccountID)
	if err != nil {
		return nil, err
	}
	ts, err := decodeTimestamp(rec)
	if err != nil {
		return nil, err
	}
	return &RequestConfig{AccountID: accountID, Timestamp: ts}, nil
}

// SlaveConfig is the frame published to a single Slave EA: its effective
// runtime status plus every setting the EA needs to act on copied trades.
type SlaveConfig struct {
	AccountID         string
	Status            uint8
	WarningCodes      []int
	AllowNewOrders    bool
	MasterEquity      *float64
	ConfigVersion     uint64
	LotMode           string
	Multiplier        *float64
	ReverseTrade      bool
	SymbolPrefix      string
	SymbolSuffix      string
	SymbolMappings    []SymbolMapping
	CopyPendingOrders bool
	SourceLotMin      *float64
	SourceLotMax      *float64
	AllowedSymbols    []string
	BlockedSymbols    []string
	AllowedMagic      []int64
	BlockedMagic      []int64
	SyncPolicy        string
	MaxSlippagePoints int
	Timestamp         time.Time
}

func (m SlaveConfig) Encode() []byte {
	b := NewRecordBuilder().
		SetString(TagAccountID, m.AccountID).
		SetUint64(TagStatus, uint64(m.Status)).
		SetString(TagWarningCodes, joinInts(m.WarningCodes)).
		SetBool(TagAllowNewOrders, m.AllowNewOrders).
		SetOptionalFloat64(TagMasterEquity, m.MasterEquity).
		SetUint64(TagConfigVersion, m.ConfigVersion).
		SetString(TagLotMode, m.LotMode).
		SetOptionalFloat64(TagMultiplier, m.Multiplier).
		SetBool(TagReverseTrade, m.ReverseTrade).
		SetString(TagSymbolPrefix, m.SymbolPrefix).
		SetString(TagSymbolSuffix, m.SymbolSuffix).
		SetString(TagSymbolMappings, joinSymbolMappings(m.SymbolMappings)).
		SetBool(TagCopyPendingOrders, m.CopyPendingOrders).
		SetOptionalFloat64(TagSourceLotMin, m.SourceLotMin).
		SetOptionalFloat64(TagSourceLotMax, m.SourceLotMax).
		SetString(TagAllowedSymbols, joinStrings(m.AllowedSymbols)).
		SetString(TagBlockedSymbols, joinStrings(m.BlockedSymbols)).
		SetString(TagAllowedMagicNumbers, joinInt64s(m.AllowedMagic)).
		SetString(TagBlockedMagicNumbers, joinInt64s(m.BlockedMagic)).
		SetString(TagSyncPolicy, m.SyncPolicy).
		SetInt64(TagMaxSlippagePoints, int64(m.MaxSlippagePoints))
	encodeTimestamp(b, m.Timestamp)
	return EncodeFrame(KindSlaveConfig, b.Encode())
}

func DecodeSlaveConfig(body []byte) (*SlaveConfig, error) {
	rec, err := DecodeRecord(body)
	if err != nil {
		return nil, err
	}
	c := &SlaveConfig{}
	if c.AccountID, err = rec.RequireString(TagAccountID); err != nil {
		return nil, err
	}
	status, err := rec.RequireUint64(TagStatus)
	if err != nil {
		return nil, err
	}
	c.Status = uint8(status)
	warnStr, _ := rec.String(TagWarningCodes)
	if c.WarningCodes, err = splitInts(warnStr); err != nil {
		return nil, err
	}
	if c.AllowNewOrders, err = rec.RequireBool(TagAllowNewOrders); err != nil {
		return nil, err
	}
	c.MasterEquity = rec.OptionalFloat64(TagMasterEquity)
	if c.ConfigVersion, err = rec.RequireUint64(TagConfigVersion); err != nil {
		return nil, err
	}
	c.LotMode, _ = rec.String(TagLotMode)
	c.Multiplier = rec.OptionalFloat64(TagMultiplier)
	c.ReverseTrade, _ = rec.Bool(TagReverseTrade)
	c.SymbolPrefix, _ = rec.String(TagSymbolPrefix)
	c.SymbolSuffix, _ = rec.String(TagSymbolSuffix)
	mapStr, _ := rec.String(TagSymbolMappings)
	if c.SymbolMappings, err = splitSymbolMappings(mapStr); err != nil {
		return nil, err
	}
	c.CopyPendingOrders, _ = rec.Bool(TagCopyPendingOrders)
	c.SourceLotMin = rec.OptionalFloat64(TagSourceLotMin)
	c.SourceLotMax = rec.OptionalFloat64(TagSourceLotMax)
	allowedSym, _ := rec.String(TagAllowedSymbols)
	c.AllowedSymbols = splitStrings(allowedSym)
	blockedSym, _ := rec.String(TagBlockedSymbols)
	c.BlockedSymbols = splitStrings(blockedSym)
	allowedMagic, _ := rec.String(TagAllowedMagicNumbers)
	if c.AllowedMagic, err = splitInt64s(allowedMagic); err != nil {
		return nil, err
	}
	blockedMagic, _ := rec.String(TagBlockedMagicNumbers)
	if c.BlockedMagic, err = splitInt64s(blockedMagic); err != nil {
		return nil, err
	}
	c.SyncPolicy, _ = rec.String(TagSyncPolicy)
	slippage, _ := rec.Int64(TagMaxSlippagePoints)
	c.MaxSlippagePoints = int(slippage)
	if c.Timestamp, err = decodeTimestamp(rec); err != nil {
		return nil, err
	}
	return c, nil
}

// MasterConfig is the frame published to a Master EA: its own effective
// status plus its symbol prefix/suffix settings.
type MasterConfig struct {
	AccountID     string
	Status        uint8
	WarningCodes  []int
	ConfigVersion uint64
	Enabled       bool
	SymbolPrefix  string
	SymbolSuffix  string
	Timestamp     time.Time
}

func (m MasterConfig) Encode() []byte {
	b := NewRecordBuilder().
		SetString(TagAccountID, m.AccountID).
		SetUint64(TagStatus, uint64(m.Status)).
		SetString(TagWarningCodes, joinInts(m.WarningCodes)).
		SetUint64(TagConfigVersion, m.ConfigVersion).
		SetBool(TagEnabledFlag, m.Enabled).
		SetString(TagSymbolPrefix, m.SymbolPrefix).
		SetString(TagSymbolSuffix, m.SymbolSuffix)
	encodeTimestamp(b, m.Timestamp)
	return EncodeFrame(KindMasterConfig, b.Encode())
}

func DecodeMasterConfig(body []byte) (*MasterConfig, error) {
	rec, err := DecodeRecord(body)
	if err != nil {
		return nil, err
	}
	c := &MasterConfig{}
	if c.AccountID, err = rec.RequireString(TagAccountID); err != nil {
		return nil, err
	}
	status, err := rec.RequireUint64(TagStatus)
	if err != nil {
		return nil, err
	}
	c.Status = uint8(status)
	warnStr, _ := rec.String(TagWarningCodes)
	if c.WarningCodes, err = splitInts(warnStr); err != nil {
		return nil, err
	}
	if c.ConfigVersion, err = rec.RequireUint64(TagConfigVersion); err != nil {
		return nil, err
	}
	c.Enabled, _ = rec.Bool(TagEnabledFlag)
	c.SymbolPrefix, _ = rec.String(TagSymbolPrefix)
	c.SymbolSuffix, _ = rec.String(TagSymbolSuffix)
	if c.Timestamp, err = decodeTimestamp(rec); err != nil {
		return nil, err
	}
	return c, nil
}

// GlobalSettings is broadcast on GlobalSettingsTopic to every connected EA
// regardless of account; Blob carries broker-wide key=value pairs the
// relay does not interpret itself.
type GlobalSettings struct {
	Blob      map[string]string
	Timestamp time.Time
}

func (m GlobalSettings) Encode() []byte {
	var parts []string
	for k, v := range m.Blob {
		parts = append(parts, k+"="+v)
	}
	b := NewRecordBuilder().SetString(TagSettingsBlob, joinStrings(parts))
	encodeTimestamp(b, m.Timestamp)
	return EncodeFrame(KindGlobalSettings, b.Encode())
}

func DecodeGlobalSettings(body []byte) (*GlobalSettings, error) {
	rec, err := DecodeRecord(body)
	if err != nil {
		return nil, err
	}
	blobStr, _ := rec.String(TagSettingsBlob)
	blob := make(map[string]string)
	for _, part := range splitStrings(blobStr) {
		kv := splitKV(part)
		if kv[0] != "" {
			blob[kv[0]] = kv[1]
		}
	}
	ts, err := decodeTimestamp(rec)
	if err != nil {
		return nil, err
	}
	return &GlobalSettings{Blob: blob, Timestamp: ts}, nil
}

func splitKV(s string) [2]string {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return [2]string{s[:i], s[i+1:]}
		}
	}
	return [2]string{s, ""}
}
