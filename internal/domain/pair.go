package domain

import "fmt"

// Pair is an exchange market pair, e.g. BTC quoted in USDT.
type Pair struct {
	Base  string
	Quote string
}

// String returns the underscore form, e.g. "BTC_USDT".
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.Base, p.Quote)
}

// Symbol returns the concatenated exchange symbol, e.g. "BTCUSDT".
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.Base, p.Quote)
}
