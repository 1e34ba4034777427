package alchemy

import "time"

// Transfer is one raw asset-transfer record as returned by
// alchemy_getAssetTransfers. Value is decoded loosely because the
// provider returns either a JSON number or a string depending on the
// asset category.
type Transfer struct {
	Hash        string       `json:"hash"`
	UniqueID    string       `json:"uniqueId"`
	Category    string       `json:"category"`
	Asset       string       `json:"asset"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	Value       any          `json:"value"`
	RawContract RawContract  `json:"rawContract"`
	Metadata    TransferMeta `json:"metadata"`

	// ParsedTime is the parsed block timestamp, populated during
	// pagination. Zero means the provider timestamp was missing or
	// malformed.
	ParsedTime time.Time `json:"-"`
}

type RawContract struct {
	Value   string `json:"value"`   // hex base-unit amount
	Address string `json:"address"` // token contract, empty for native
	Decimal string `json:"decimal"` // hex decimals, often empty
}

type TransferMeta struct {
	BlockTimestamp string `json:"blockTimestamp"`
}

// TokenMetadata is the result of alchemy_getTokenMetadata.
type TokenMetadata struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals *int   `json:"decimals"`
	Logo     string `json:"logo"`
}

// Receipt carries the gas fields of eth_getTransactionReceipt.
type Receipt struct {
	GasUsed           string `json:"gasUsed"`
	EffectiveGasPrice string `json:"effectiveGasPrice"`
	GasPrice          string `json:"gasPrice"`
	From              string `json:"from"`
	Status            string `json:"status"`
}

// Block carries the header fields this tool reads.
type Block struct {
	Number    string `json:"number"`
	Timestamp string `json:"timestamp"`
}
