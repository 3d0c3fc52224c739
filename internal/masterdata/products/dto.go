package products

import "github.com/shopspring/decimal"

type createRequest struct {
	Name  string           `json:"name" validate:"required,max=255"`
	Price *decimal.Decimal `json:"price" validate:"required"`
}
