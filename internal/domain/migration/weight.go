package migration

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var weightFactors = map[string]map[string]string{
	"kg": {"kg": "1", "g": "1000", "lb": "2.20462", "oz": "35.274"},
	"g":  {"kg": "0.001", "g": "1", "lb": "0.00220462", "oz": "0.035274"},
	"lb": {"kg": "0.453592", "g": "453.592", "lb": "1", "oz": "16"},
	"oz": {"kg": "0.0283495", "g": "28.3495", "lb": "0.0625", "oz": "1"},
}

// NormalizeWeightUnit maps unit aliases to the keys of the conversion table
func NormalizeWeightUnit(unit string) string {
	switch unit {
	case "lbs":
		return "lb"
	case "grams":
		return "g"
	case "kilograms":
		return "kg"
	case "pounds":
		return "lb"
	case "ounces":
		return "oz"
	}
	return unit
}

// ConvertWeight converts weight from one unit into another
func ConvertWeight(weight decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, to = NormalizeWeightUnit(from), NormalizeWeightUnit(to)
	row, ok := weightFactors[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownWeightUnit, from)
	}
	factor, ok := row[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownWeightUnit, to)
	}
	return weight.Mul(decimal.RequireFromString(factor)), nil
}
