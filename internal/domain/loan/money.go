package loan

import "github.com/shopspring/decimal"

const (
	moneyPlaces = 2
	ratePlaces  = 24
)

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

func truncate(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(moneyPlaces)
}

// compoundFactor returns (1+r)^n by squaring, keeping intermediate results at
// ratePlaces so long daily schedules do not blow up the mantissa.
func compoundFactor(r decimal.Decimal, n int) decimal.Decimal {
	result := decimal.NewFromInt(1)
	base := decimal.NewFromInt(1).Add(r)
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(base).Round(ratePlaces)
		}
		base = base.Mul(base).Round(ratePlaces)
		n >>= 1
	}
	return result
}

func minDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
