package wire

// Field tags are unique across the whole schema rather than per message
// kind: a given tag always means the same thing, which keeps the decode
// helpers in messages.go simple to audit.
const (
	TagAccountID byte = iota + 1
	TagRole
	TagPlatform
	TagNumericAccount
	TagBroker
	TagServer
	TagBalance
	TagEquity
	TagCurrency
	TagLeverage
	TagTradeAllowed
	TagTimestamp
	TagAction
	TagTicket
	TagSymbol
	TagOrderType
	TagLots
	TagOpenPrice
	TagStopLoss
	TagTakeProfit
	TagMagicNumber
	TagComment
	TagCloseRatio
	TagSourceAccountID
	TagStatus
	TagWarningCodes
	TagAllowNewOrders
	TagConfigVersion
	TagMasterEquity
	TagEnabledFlag
	TagLotMode
	TagMultiplier
	TagReverseTrade
	TagSymbolPrefix
	TagSymbolSuffix
	TagSymbolMappings
	TagCopyPendingOrders
	TagSourceLotMin
	TagSourceLotMax
	TagAllowedSymbols
	TagBlockedSymbols
	TagAllowedMagicNumbers
	TagBlockedMagicNumbers
	TagSyncPolicy
	TagMaxSlippagePoints
	TagSettingsBlob
)
