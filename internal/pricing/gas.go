package pricing

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GasPriceSource is satisfied by chain.Backend
type GasPriceSource interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// GasPricer reads the current gas price, falling back to a configured price when the node cannot answer
type GasPricer struct {
	source   GasPriceSource
	fallback *big.Int
}

func NewGasPricer(source GasPriceSource, fallbackGwei decimal.Decimal) *GasPricer {
	return &GasPricer{
		source:   source,
		fallback: fallbackGwei.Shift(9).Floor().BigInt(),
	}
}

func (g *GasPricer) GasPrice(ctx context.Context) *big.Int {
	price, err := g.source.SuggestGasPrice(ctx)
	if err != nil || price == nil || price.Sign() <= 0 {
		zap.L().Warn("Gas price unavailable, using fallback",
			zap.String("fallback_wei", g.fallback.String()),
			zap.Error(err))
		return new(big.Int).Set(g.fallback)
	}
	return price
}
