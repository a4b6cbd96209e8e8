package ports

import "github.com/shopspring/decimal"

var (
	halfDecimal = decimal.NewFromFloat(0.5)
	bpsScale    = decimal.NewFromInt(10000)
)
