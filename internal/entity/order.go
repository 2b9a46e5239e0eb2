package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRecord is a read-only snapshot of one ledger order.
type OrderRecord struct {
	OrderID         string          `json:"order_id"`
	TrackingID      string          `json:"tracking_id"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	ProductName     string          `json:"product_name"`
	Weight          string          `json:"weight"` // two-decimal string, e.g. "45.00"
	CategoryL1      string          `json:"category_l1"`
	CategoryL2      string          `json:"category_l2"`
	NumberOfItems   int             `json:"number_of_items"`
	ShippingExclVAT decimal.Decimal `json:"shipping_excl_vat"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	BuyerCountry    string          `json:"buyer_country"`
	BuyerPostal     string          `json:"buyer_postal"`
	SellerCountry   string          `json:"seller_country"`
	SellerPostal    string          `json:"seller_postal"`
	CourierProvider string          `json:"courier_provider"`
	Height          decimal.Decimal `json:"height"`
	Width           decimal.Decimal `json:"width"`
	Depth           decimal.Decimal `json:"depth"`
	Wooden          bool            `json:"wooden"`
}

// Route returns the "buyer_country-seller_country" key used by rate tables.
func (o OrderRecord) Route() string {
	return o.BuyerCountry + "-" + o.SellerCountry
}

// MaxDimension returns the largest of height, width and depth in centimetres.
func (o OrderRecord) MaxDimension() decimal.Decimal {
	return decimal.Max(o.Height, o.Width, o.Depth)
}

// Items returns the item count, treating an unknown count as one item.
func (o OrderRecord) Items() int {
	if o.NumberOfItems < 1 {
		return 1
	}
	return o.NumberOfItems
}
