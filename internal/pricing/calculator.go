package pricing

import (
	"context"
	"fmt"

	"wallet-custody-go/internal/apperr"
	"wallet-custody-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	weiDecimals = 18
	// places kept when dividing by the price
	divisionPlaces = 24
)

var (
	cent = decimal.New(1, -2)
	one  = decimal.NewFromInt(1)
)

// CalculatorConfig holds the fee and gas parameters of a conversion
type CalculatorConfig struct {
	PlatformFeeRate     decimal.Decimal
	GasUnits            uint64
	GasSafetyMultiplier decimal.Decimal
}

// Calculator converts a USD amount into the native coin amount a campaign receives
type Calculator struct {
	prices *CachedFeed
	gas    *GasPricer
	cfg    CalculatorConfig
}

func NewCalculator(prices *CachedFeed, gas *GasPricer, cfg CalculatorConfig) (*Calculator, error) {
	if cfg.PlatformFeeRate.IsNegative() || cfg.PlatformFeeRate.GreaterThanOrEqual(one) {
		return nil, fmt.Errorf("platform fee rate must be in [0, 1), got %s", cfg.PlatformFeeRate)
	}
	if cfg.GasSafetyMultiplier.IsZero() {
		cfg.GasSafetyMultiplier = one
	}
	if cfg.GasSafetyMultiplier.LessThan(one) {
		return nil, fmt.Errorf("gas safety multiplier must be at least 1, got %s", cfg.GasSafetyMultiplier)
	}
	return &Calculator{prices: prices, gas: gas, cfg: cfg}, nil
}

// Convert computes gross, fee, gas and net amounts for usd at the current price.
// Net is floored to whole wei. Amounts too small to cover fee and gas fail with a
// Conversion error carrying the minimum USD amount that would succeed.
func (c *Calculator) Convert(ctx context.Context, usd decimal.Decimal) (*models.ConversionResult, error) {
	price, source := c.prices.Quote(ctx)
	gasPrice := c.gas.GasPrice(ctx)

	estimatedGas := decimal.NewFromBigInt(gasPrice, -weiDecimals).
		Mul(decimal.NewFromInt(int64(c.cfg.GasUnits))).
		Mul(c.cfg.GasSafetyMultiplier)

	result, ok := breakdown(usd, price, c.cfg.PlatformFeeRate, estimatedGas)
	if !ok {
		minimum := minimumUSD(price, c.cfg.PlatformFeeRate, estimatedGas)
		zap.L().Info("Amount too small to donate",
			zap.String("amount_usd", usd.String()),
			zap.String("minimum_usd", minimum.StringFixed(2)),
			zap.String("price_usd", price.String()))
		return nil, apperr.Conversion(
			fmt.Sprintf("amount %s USD does not cover platform fee and gas", usd.StringFixed(2)),
			apperr.WithMinimumUSD(minimum))
	}
	result.PriceSource = source
	return result, nil
}

func breakdown(usd, price, feeRate, estimatedGas decimal.Decimal) (*models.ConversionResult, bool) {
	if !usd.IsPositive() || !price.IsPositive() {
		return nil, false
	}
	gross := usd.DivRound(price, divisionPlaces)
	fee := gross.Mul(feeRate)
	net := gross.Sub(fee).Sub(estimatedGas)
	netWei := net.Shift(weiDecimals).Floor()
	if !netWei.IsPositive() {
		return nil, false
	}
	return &models.ConversionResult{
		AmountUSD:    usd,
		PriceUSD:     price,
		GrossAmount:  gross,
		PlatformFee:  fee,
		EstimatedGas: estimatedGas,
		NetAmount:    net,
		NetWei:       netWei.String(),
	}, true
}

// minimumUSD is the smallest whole-cent amount whose net is at least one wei
func minimumUSD(price, feeRate, estimatedGas decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return cent
	}
	oneWei := decimal.New(1, -weiDecimals)
	threshold := estimatedGas.Add(oneWei).Mul(price).DivRound(one.Sub(feeRate), divisionPlaces)
	minimum := threshold.Div(cent).Floor().Add(one).Mul(cent)
	for i := 0; i < 3; i++ {
		if _, ok := breakdown(minimum, price, feeRate, estimatedGas); ok {
			break
		}
		minimum = minimum.Add(cent)
	}
	return minimum
}
