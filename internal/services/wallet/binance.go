package wallet

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// BinanceWallet reads spot account balances from Binance.
type BinanceWallet struct {
	client *binance.Client
}

func NewBinanceWallet(client *binance.Client) *BinanceWallet {
	return &BinanceWallet{client: client}
}

func (w *BinanceWallet) Balance(ctx context.Context, currency string) (decimal.Decimal, error) {
	account, err := w.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrCapitalUnavailable, "binance account: %v", err)
	}

	for _, balance := range account.Balances {
		if balance.Asset != currency {
			continue
		}
		free, err := decimal.NewFromString(balance.Free)
		if err != nil {
			return decimal.Zero, errors.Wrapf(ErrCapitalUnavailable, "parse binance balance %q", balance.Free)
		}
		return free, nil
	}

	return decimal.Zero, nil
}
