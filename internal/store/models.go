package store

import "github.com/tradecopy/relayd/internal/wire"

// TradeGroup is the persisted row for one Master and its copy settings.
type TradeGroup struct {
	ID              string
	MasterAccountID string
	EnabledFlag     bool // Master-side web UI intent
	SymbolPrefix    string
	SymbolSuffix    string
	RuntimeStatus   uint8
	WarningCodes    []int
	ConfigVersion   uint64
	CreatedAt       int64
	UpdatedAt       int64
}

// TradeGroupMember is the persisted row for one Master->Slave edge.
type TradeGroupMember struct {
	ID                string
	GroupID           string
	SlaveAccountID    string
	EnabledFlag       bool // Slave-side web UI intent
	LotMode           string
	Multiplier        *float64
	ReverseTrade      bool
	SymbolPrefix      string
	SymbolSuffix      string
	SymbolMappings    []wire.SymbolMapping
	CopyPendingOrders bool
	SourceLotMin      *float64
	SourceLotMax      *float64
	AllowedSymbols    []string
	BlockedSymbols    []string
	AllowedMagic      []int64
	BlockedMagic      []int64
	SyncPolicy        string
	MaxSlippagePoints int
	RuntimeStatus     uint8
	WarningCodes      []int
	AllowNewOrders    bool
	ConfigVersion     uint64
	CreatedAt         int64
	UpdatedAt         int64
}
