package wallet

import (
	"testing"

	"github.com/sawpanic/walletfeatures/internal/providers/alchemy"
)

const (
	otherParty = "0x9999999999999999999999999999999999999999"
	uniswapV2  = "0x7a250d5630b4cf539739df2c5dacb4c659f2488d"
)

func TestClassifyTransaction(t *testing.T) {
	w := testWallet

	cases := []struct {
		name   string
		events []TransferEvent
		want   TxType
	}{
		{
			name:   "nft received is mint",
			events: []TransferEvent{{Category: "erc721", From: otherParty, To: w}},
			want:   TxMint,
		},
		{
			name:   "nft sent is burn",
			events: []TransferEvent{{Category: "erc1155", From: w, To: otherParty}},
			want:   TxBurn,
		},
		{
			name: "mint outranks router swap",
			events: []TransferEvent{
				{Category: "erc20", From: w, To: uniswapV2},
				{Category: "erc721", From: otherParty, To: w},
			},
			want: TxMint,
		},
		{
			name:   "transfer to dex router is swap",
			events: []TransferEvent{{Category: "erc20", From: w, To: uniswapV2}},
			want:   TxSwap,
		},
		{
			name:   "self transfer",
			events: []TransferEvent{{Category: "external", From: w, To: w}},
			want:   TxTransfer,
		},
		{
			name: "both directions is swap",
			events: []TransferEvent{
				{Category: "erc20", From: w, To: otherParty},
				{Category: "erc20", From: otherParty, To: w},
			},
			want: TxSwap,
		},
		{
			name:   "external transfer",
			events: []TransferEvent{{Category: "external", From: w, To: otherParty}},
			want:   TxTransfer,
		},
		{
			name:   "internal transfer",
			events: []TransferEvent{{Category: "internal", From: otherParty, To: w}},
			want:   TxTransfer,
		},
		{
			name:   "erc20 transfer",
			events: []TransferEvent{{Category: "erc20", From: otherParty, To: w}},
			want:   TxTransfer,
		},
		{
			name: "contract interaction",
			events: []TransferEvent{{
				Category:    "unknown",
				From:        otherParty,
				To:          "0x5555555555555555555555555555555555555555",
				RawContract: alchemy.RawContract{Address: "0xcontract"},
			}},
			want: TxContractInteraction,
		},
		{
			name:   "nothing matches is unknown",
			events: []TransferEvent{{Category: "unknown", From: otherParty, To: "0x5555555555555555555555555555555555555555"}},
			want:   TxUnknown,
		},
		{
			name:   "no events is unknown",
			events: nil,
			want:   TxUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyTransaction(w, tc.events); got != tc.want {
				t.Errorf("ClassifyTransaction = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClassifyEvents_GroupsByHash(t *testing.T) {
	w := testWallet
	events := []TransferEvent{
		{TxHash: "0x1", Category: "external", From: w, To: otherParty},
		{TxHash: "0x2", Category: "erc721", From: otherParty, To: w},
		{TxHash: "0x3", Category: "erc20", From: w, To: otherParty},
		{TxHash: "0x3", Category: "erc20", From: otherParty, To: w},
	}

	types := classifyEvents(w, events)
	for _, want := range []TxType{TxTransfer, TxMint, TxSwap} {
		if _, ok := types[want]; !ok {
			t.Errorf("missing type %q in %v", want, types)
		}
	}
	if len(types) != 3 {
		t.Errorf("types = %v, want exactly 3", types)
	}
}
