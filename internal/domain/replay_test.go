package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func at(minute int) time.Time {
	return time.Date(2026, 1, 1, 12, minute, 0, 0, time.UTC)
}

func buy(minute int, asset, qty, usd string) Transaction {
	return Transaction{
		Type:       TxBuy,
		Timestamp:  at(minute),
		BaseAsset:  asset,
		BaseQty:    dec(qty),
		QuoteAsset: "USD",
		QuoteQty:   dec(usd),
	}
}

func TestReplayBuyAveraging(t *testing.T) {
	positions, err := Replay([]Transaction{
		buy(0, "BTC", "1", "30000"),
		buy(1, "BTC", "2", "120000"),
	})
	require.NoError(t, err)

	pos := positions["BTC"]
	require.True(t, dec("3").Equal(pos.Qty))
	require.True(t, dec("150000").Equal(pos.CostUSD))
	require.True(t, dec("50000").Equal(pos.AvgCostUSD()))
}

func TestReplayAvgCostInvariantAfterEachBuy(t *testing.T) {
	txs := []Transaction{
		buy(0, "ETH", "1.5", "3000"),
		buy(1, "ETH", "0.25", "700"),
		buy(2, "ETH", "10", "18500"),
	}

	for n := 1; n <= len(txs); n++ {
		positions, err := Replay(txs[:n])
		require.NoError(t, err)

		pos := positions["ETH"]
		require.True(t, pos.AvgCostUSD().Mul(pos.Qty).Sub(pos.CostUSD).Abs().LessThan(dec("0.0000001")),
			"avg*qty must equal total cost after %d buys", n)
	}
}

func TestReplaySellRemovesCostAtPreSaleAverage(t *testing.T) {
	positions, err := Replay([]Transaction{
		buy(0, "BTC", "2", "80000"),
		{
			Type:       TxSell,
			Timestamp:  at(1),
			BaseAsset:  "BTC",
			BaseQty:    dec("1"),
			QuoteAsset: "USD",
			QuoteQty:   dec("50000"), // sale price does not touch cost basis
		},
	})
	require.NoError(t, err)

	pos := positions["BTC"]
	require.True(t, dec("1").Equal(pos.Qty))
	require.True(t, dec("40000").Equal(pos.CostUSD))
	require.True(t, dec("40000").Equal(pos.AvgCostUSD()))
}

func TestReplaySellEntirePositionZeroesCost(t *testing.T) {
	positions, err := Replay([]Transaction{
		buy(0, "BTC", "3", "100000"),
		{
			Type:       TxSell,
			Timestamp:  at(1),
			BaseAsset:  "BTC",
			BaseQty:    dec("3"),
			QuoteAsset: "USD",
			QuoteQty:   dec("200000"),
		},
	})
	require.NoError(t, err)

	pos := positions["BTC"]
	require.True(t, pos.Qty.IsZero())
	require.True(t, pos.CostUSD.IsZero())
	require.True(t, pos.AvgCostUSD().IsZero())
}

func TestReplayInsufficientBalanceAbortsWholeReplay(t *testing.T) {
	for _, txType := range []TxType{TxSell, TxWithdraw} {
		t.Run(string(txType), func(t *testing.T) {
			positions, err := Replay([]Transaction{
				buy(0, "BTC", "1", "30000"),
				{
					Type:       txType,
					Timestamp:  at(1),
					BaseAsset:  "BTC",
					BaseQty:    dec("2"),
					QuoteAsset: "USD",
					QuoteQty:   dec("60000"),
				},
			})

			var insufficient *InsufficientBalanceError
			require.ErrorAs(t, err, &insufficient)
			require.Equal(t, "BTC", insufficient.Asset)
			require.True(t, dec("2").Equal(insufficient.Required))
			require.True(t, dec("1").Equal(insufficient.Available))
			require.Nil(t, positions, "failed replay must not expose partial positions")
		})
	}
}

func TestReplaySwapReallocatesCost(t *testing.T) {
	positions, err := Replay([]Transaction{
		buy(0, "BTC", "1", "30000"),
		{
			Type:       TxSwap,
			Timestamp:  at(1),
			BaseAsset:  "BTC",
			BaseQty:    dec("0.5"),
			QuoteAsset: "ETH",
			QuoteQty:   dec("8"),
			ValueUSD:   decPtr("30000"),
		},
	})
	require.NoError(t, err)

	btc := positions["BTC"]
	require.True(t, dec("0.5").Equal(btc.Qty))
	require.True(t, dec("15000").Equal(btc.CostUSD))

	eth := positions["ETH"]
	require.True(t, dec("8").Equal(eth.Qty))
	require.True(t, dec("30000").Equal(eth.CostUSD))
	require.True(t, dec("3750").Equal(eth.AvgCostUSD()))
}

func TestReplaySwapToStableWithoutValueUSD(t *testing.T) {
	positions, err := Replay([]Transaction{
		buy(0, "BTC", "1", "30000"),
		{
			Type:       TxSwap,
			Timestamp:  at(1),
			BaseAsset:  "BTC",
			BaseQty:    dec("1"),
			QuoteAsset: "USDT",
			QuoteQty:   dec("31000"), // already USD denominated
		},
	})
	require.NoError(t, err)

	usdt := positions["USDT"]
	require.True(t, dec("31000").Equal(usdt.Qty))
	require.True(t, dec("31000").Equal(usdt.CostUSD))
}

func TestReplaySwapInsufficientBalance(t *testing.T) {
	positions, err := Replay([]Transaction{
		{
			Type:       TxSwap,
			Timestamp:  at(0),
			BaseAsset:  "BTC",
			BaseQty:    dec("1"),
			QuoteAsset: "ETH",
			QuoteQty:   dec("16"),
		},
	})

	var insufficient *InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	require.Nil(t, positions)
}

func TestReplayDepositWithoutCostBasisUnderCostsPosition(t *testing.T) {
	withBasis, err := Replay([]Transaction{
		buy(0, "BTC", "1", "30000"),
		{Type: TxDeposit, Timestamp: at(1), BaseAsset: "BTC", BaseQty: dec("1"), CostBasisUSD: decPtr("30000")},
	})
	require.NoError(t, err)

	withoutBasis, err := Replay([]Transaction{
		buy(0, "BTC", "1", "30000"),
		{Type: TxDeposit, Timestamp: at(1), BaseAsset: "BTC", BaseQty: dec("1")},
	})
	require.NoError(t, err)

	require.True(t, withoutBasis["BTC"].AvgCostUSD().LessThan(withBasis["BTC"].AvgCostUSD()),
		"deposit without cost basis must strictly decrease average cost")
	require.True(t, withoutBasis["BTC"].CostUSD.Equal(dec("30000")))
	require.True(t, withoutBasis["BTC"].Qty.Equal(dec("2")))
}

func TestReplayStandaloneFeeWritesDownCostProportionally(t *testing.T) {
	positions, err := Replay([]Transaction{
		buy(0, "BTC", "1", "30000"),
		{Type: TxFee, Timestamp: at(1), FeeAsset: "BTC", FeeQty: dec("0.1")},
	})
	require.NoError(t, err)

	// proportion = 0.1 / (0.9 + 0.1) = 0.1, cost shrinks by 10%
	pos := positions["BTC"]
	require.True(t, dec("0.9").Equal(pos.Qty))
	require.True(t, dec("27000").Equal(pos.CostUSD))
}

func TestReplayAttachedFeeAppliesAfterTrade(t *testing.T) {
	positions, err := Replay([]Transaction{
		{
			Type:       TxBuy,
			Timestamp:  at(0),
			BaseAsset:  "ETH",
			BaseQty:    dec("10"),
			QuoteAsset: "USD",
			QuoteQty:   dec("20000"),
			FeeAsset:   "ETH",
			FeeQty:     dec("0.01"),
		},
	})
	require.NoError(t, err)

	pos := positions["ETH"]
	require.True(t, dec("9.99").Equal(pos.Qty))
	// cost written down by 0.01/10 = 0.1%
	require.True(t, dec("19980").Equal(pos.CostUSD))
}

func TestReplayFeeExceedingBalanceZeroesPosition(t *testing.T) {
	positions, err := Replay([]Transaction{
		buy(0, "BNB", "0.05", "20"),
		{Type: TxFee, Timestamp: at(1), FeeAsset: "BNB", FeeQty: dec("0.1")},
	})
	require.NoError(t, err)

	pos := positions["BNB"]
	require.True(t, pos.Qty.IsZero())
	require.True(t, pos.CostUSD.IsZero())
}

func TestReplayOrdersByTimestampWithStableTies(t *testing.T) {
	// the sell arrives first in the slice but carries a later timestamp,
	// so replay must process the buy before it
	positions, err := Replay([]Transaction{
		{
			Type:       TxSell,
			Timestamp:  at(5),
			BaseAsset:  "BTC",
			BaseQty:    dec("1"),
			QuoteAsset: "USD",
			QuoteQty:   dec("40000"),
		},
		buy(0, "BTC", "1", "30000"),
	})
	require.NoError(t, err)
	require.True(t, positions["BTC"].Qty.IsZero())

	// equal timestamps keep insertion order: buy then sell succeeds
	positions, err = Replay([]Transaction{
		buy(0, "BTC", "1", "30000"),
		{
			Type:       TxSell,
			Timestamp:  at(0),
			BaseAsset:  "BTC",
			BaseQty:    dec("1"),
			QuoteAsset: "USD",
			QuoteQty:   dec("40000"),
		},
	})
	require.NoError(t, err)
	require.True(t, positions["BTC"].Qty.IsZero())
}

func TestReplayDoesNotMutateInput(t *testing.T) {
	txs := []Transaction{
		{
			Type:       TxSell,
			Timestamp:  at(5),
			BaseAsset:  "BTC",
			BaseQty:    dec("1"),
			QuoteAsset: "USD",
			QuoteQty:   dec("40000"),
		},
		buy(0, "BTC", "1", "30000"),
	}

	_, err := Replay(txs)
	require.NoError(t, err)
	require.Equal(t, TxSell, txs[0].Type, "input order must survive replay")
}

func TestTransactionValidate(t *testing.T) {
	tests := []struct {
		name    string
		tx      Transaction
		wantErr bool
	}{
		{name: "valid buy", tx: buy(0, "BTC", "1", "30000")},
		{name: "buy without quote", tx: Transaction{Type: TxBuy, BaseAsset: "BTC", BaseQty: dec("1")}, wantErr: true},
		{name: "fee without asset", tx: Transaction{Type: TxFee, FeeQty: dec("1")}, wantErr: true},
		{name: "valid standalone fee", tx: Transaction{Type: TxFee, FeeAsset: "BTC", FeeQty: dec("0.1")}},
		{name: "deposit negative qty", tx: Transaction{Type: TxDeposit, BaseAsset: "BTC", BaseQty: dec("-1")}, wantErr: true},
		{name: "value_usd on buy", tx: func() Transaction {
			tx := buy(0, "BTC", "1", "30000")
			tx.ValueUSD = decPtr("30000")
			return tx
		}(), wantErr: true},
		{name: "cost_basis on withdraw", tx: Transaction{
			Type: TxWithdraw, BaseAsset: "BTC", BaseQty: dec("1"), CostBasisUSD: decPtr("10"),
		}, wantErr: true},
		{name: "unknown type", tx: Transaction{Type: TxType("AIRDROP"), BaseAsset: "BTC", BaseQty: dec("1")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tx.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
