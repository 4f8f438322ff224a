package market

import "math/big"

// FeeConfig is the fixed-point fee representation used by the marketplace.
// The effective fee fraction is Rate / 10^(Decimal+2), so Rate=10, Decimal=0
// charges 10% and Rate=1011111, Decimal=5 charges 10.11111%.
type FeeConfig struct {
	Rate    uint64
	Decimal uint8
}

// Valid reports whether the configuration keeps the effective fee strictly
// below 50%, i.e. Rate < 5 * 10^(Decimal+1).
func (c FeeConfig) Valid() bool {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(c.Decimal)+1), nil)
	limit.Mul(limit, big.NewInt(5))
	return new(big.Int).SetUint64(c.Rate).Cmp(limit) < 0
}

// ComputeFee returns price * Rate / 10^(Decimal+2) using floor division. A
// zero rate yields a zero fee regardless of the decimal, and the fee never
// exceeds the price for any valid configuration.
func ComputeFee(cfg FeeConfig, price *big.Int) *big.Int {
	if price == nil || price.Sign() <= 0 || cfg.Rate == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(price, new(big.Int).SetUint64(cfg.Rate))
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(cfg.Decimal)+2), nil)
	return fee.Div(fee, denom)
}
