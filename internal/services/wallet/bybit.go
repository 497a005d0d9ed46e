package wallet

import (
	"context"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// BybitWallet reads unified account balances from Bybit.
type BybitWallet struct {
	client *bybit.Client
}

func NewBybitWallet(client *bybit.Client) *BybitWallet {
	return &BybitWallet{client: client}
}

func (w *BybitWallet) Balance(ctx context.Context, currency string) (decimal.Decimal, error) {
	res, err := w.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5("UNIFIED"), nil)
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrCapitalUnavailable, "bybit wallet balance: %v", err)
	}
	if len(res.Result.List) == 0 {
		return decimal.Zero, nil
	}

	for _, coin := range res.Result.List[0].Coin {
		if string(coin.Coin) != currency {
			continue
		}
		free, err := decimal.NewFromString(coin.WalletBalance)
		if err != nil {
			return decimal.Zero, errors.Wrapf(ErrCapitalUnavailable, "parse bybit balance %q", coin.WalletBalance)
		}
		return free, nil
	}

	return decimal.Zero, nil
}
