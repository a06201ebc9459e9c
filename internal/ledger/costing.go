package ledger

import "github.com/shopspring/decimal"

// pricePlaces matches the NUMERIC(14,4) price columns.
const pricePlaces = 4

// WeightedAverage recomputes the average unit cost after receiving qty units
// at unitPrice on top of oldQty units valued at oldAvg. When nothing is left
// on hand the old average is kept.
func WeightedAverage(oldQty int, oldAvg decimal.Decimal, qty int, unitPrice decimal.Decimal) decimal.Decimal {
	if oldQty < 0 {
		oldQty = 0
	}
	newQty := oldQty + qty
	if newQty <= 0 {
		return oldAvg
	}
	value := decimal.NewFromInt(int64(oldQty)).Mul(oldAvg).
		Add(decimal.NewFromInt(int64(qty)).Mul(unitPrice))
	return value.DivRound(decimal.NewFromInt(int64(newQty)), pricePlaces)
}

func Subtotal(qty int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty)))
}
