package vault

import (
	"fmt"
	"math/big"

	"github.com/ruteri/timelock-vault/interfaces"
	"github.com/shopspring/decimal"
)

const secondsPerDay = 86400

// FeeQuote describes the early-exit fee of a vault at a point in time.
type FeeQuote struct {
	ElapsedDays        int64           `json:"elapsed_days"`
	DurationDays       int64           `json:"duration_days"`
	CompletionFraction decimal.Decimal `json:"completion_fraction"`
	FeeFraction        decimal.Decimal `json:"fee_fraction"`
	Fee                uint64          `json:"fee"`
	Matured            bool            `json:"matured"`
}

// QuoteEarlyExit computes the penalty for leaving a lock early.
//
// Elapsed time and duration are counted in whole days. Once the elapsed days
// reach the duration, or when the duration is shorter than a day, the fee is
// zero. Otherwise the fee is baseRate * (1 - elapsed/duration) * basis rounded
// down to a whole unit.
func QuoteEarlyExit(now, depositTimestamp, lockDuration int64, baseRate decimal.Decimal, basis uint64) (FeeQuote, error) {
	elapsed := now - depositTimestamp
	if elapsed < 0 {
		elapsed = 0
	}

	q := FeeQuote{
		ElapsedDays:  elapsed / secondsPerDay,
		DurationDays: lockDuration / secondsPerDay,
	}

	if q.DurationDays <= 0 || q.ElapsedDays >= q.DurationDays {
		q.Matured = true
		q.CompletionFraction = decimal.NewFromInt(1)
		q.FeeFraction = decimal.Zero
		return q, nil
	}

	days := decimal.NewFromInt(q.DurationDays)
	remaining := decimal.NewFromInt(q.DurationDays - q.ElapsedDays)

	q.CompletionFraction = decimal.NewFromInt(q.ElapsedDays).DivRound(days, 18)
	q.FeeFraction = baseRate.Mul(decimal.NewFromInt(1).Sub(q.CompletionFraction))

	// Floor the exact quotient rather than the rounded fractions above.
	fee, _ := baseRate.Mul(remaining).Mul(decimal.NewFromBigInt(new(big.Int).SetUint64(basis), 0)).QuoRem(days, 0)
	if fee.IsNegative() {
		return FeeQuote{}, fmt.Errorf("%w: negative fee rate %s", interfaces.ErrArithmeticOverflow, baseRate)
	}

	feeInt := fee.BigInt()
	if !feeInt.IsUint64() {
		return FeeQuote{}, fmt.Errorf("%w: fee %s exceeds uint64", interfaces.ErrArithmeticOverflow, fee)
	}
	q.Fee = feeInt.Uint64()
	return q, nil
}

// EarlyExitFee returns only the fee amount of QuoteEarlyExit.
func EarlyExitFee(now, depositTimestamp, lockDuration int64, baseRate decimal.Decimal, basis uint64) (uint64, error) {
	q, err := QuoteEarlyExit(now, depositTimestamp, lockDuration, baseRate, basis)
	if err != nil {
		return 0, err
	}
	return q.Fee, nil
}
