package wallet

import "strings"

// TxType is the semantic label assigned to one transaction.
type TxType string

const (
	TxMint                TxType = "MINT"
	TxBurn                TxType = "BURN"
	TxSwap                TxType = "SWAP"
	TxTransfer            TxType = "TRANSFER"
	TxContractInteraction TxType = "CONTRACT_INTERACTION"
	TxUnknown             TxType = "UNKNOWN"
)

// dexRouters is the allow-list of decentralized-exchange router
// addresses; a transfer into any of these marks the transaction a swap.
var dexRouters = map[string]struct{}{
	"0x7a250d5630b4cf539739df2c5dacb4c659f2488d": {}, // Uniswap V2
	"0xe592427a0aece92de3edee1f18e0157c05861564": {}, // Uniswap V3 router
	"0x68b3465833fb72a70ecdf485e0e4c7bd8665fc45": {}, // Uniswap V3 periphery
	"0xd9e1ce17f2641f24ae83637ab66a2cca9c378b9f": {}, // SushiSwap
}

func isNFTCategory(category string) bool {
	return category == "erc721" || category == "erc1155"
}

// ClassifyTransaction assigns exactly one type to the events sharing a
// transaction hash. Rules are evaluated in strict priority order; the
// first match wins, so an NFT mint routed through a DEX still counts
// as a mint.
func ClassifyTransaction(wallet string, events []TransferEvent) TxType {
	wallet = strings.ToLower(wallet)

	for _, ev := range events {
		if isNFTCategory(ev.Category) && ev.To == wallet {
			return TxMint
		}
	}
	for _, ev := range events {
		if isNFTCategory(ev.Category) && ev.From == wallet {
			return TxBurn
		}
	}
	for _, ev := range events {
		if _, ok := dexRouters[ev.To]; ok {
			return TxSwap
		}
	}
	for _, ev := range events {
		if ev.From == wallet && ev.To == wallet {
			return TxTransfer
		}
	}

	var incoming, outgoing bool
	categories := make(map[string]struct{}, len(events))
	hasContract := false
	for _, ev := range events {
		if ev.To == wallet {
			incoming = true
		}
		if ev.From == wallet {
			outgoing = true
		}
		categories[ev.Category] = struct{}{}
		if ev.ContractAddress() != "" {
			hasContract = true
		}
	}

	if incoming && outgoing {
		return TxSwap
	}
	if _, ok := categories["external"]; ok {
		return TxTransfer
	}
	if _, ok := categories["internal"]; ok {
		return TxTransfer
	}
	if _, ok := categories["erc20"]; ok {
		return TxTransfer
	}
	if hasContract {
		return TxContractInteraction
	}
	return TxUnknown
}

// classifyEvents groups events by transaction hash and returns the set
// of distinct types observed.
func classifyEvents(wallet string, events []TransferEvent) map[TxType]struct{} {
	byTx := make(map[string][]TransferEvent)
	for _, ev := range events {
		byTx[ev.TxHash] = append(byTx[ev.TxHash], ev)
	}
	types := make(map[TxType]struct{})
	for _, group := range byTx {
		types[ClassifyTransaction(wallet, group)] = struct{}{}
	}
	return types
}
