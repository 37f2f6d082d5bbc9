package domain

// TaxComponentType identifies which part of a line item a tax entry belongs to.
type TaxComponentType string

const (
	TaxComponentProduct   TaxComponentType = "product"
	TaxComponentVariation TaxComponentType = "variation"
	TaxComponentAddon     TaxComponentType = "addon"
)

// TaxDetails aggregates the tax computed for a single line item.
type TaxDetails struct {
	ProductTax   float64 `json:"productTax"`
	VariationTax float64 `json:"variationTax"`
	AddonTax     float64 `json:"addonTax"`
	TotalTax     float64 `json:"totalTax"`
	// AddedTax is the portion of TotalTax coming from excluded specs and payable on top of prices.
	AddedTax  float64             `json:"addedTax"`
	Breakdown []TaxBreakdownEntry `json:"breakdown"`
}

// TaxBreakdownEntry records the tax of one taxed component for display drill-down.
type TaxBreakdownEntry struct {
	Name          string           `json:"name"`
	Type          TaxComponentType `json:"type"`
	TaxableAmount float64          `json:"taxableAmount"`
	TaxAmount     float64          `json:"taxAmount"`
	TaxRate       float64          `json:"taxRate"`
}

// CartTotals holds the scalar totals derived from the cart items.
type CartTotals struct {
	Subtotal           float64 `json:"subtotal"`
	Total              float64 `json:"total"`
	ItemCount          int     `json:"itemCount"`
	TotalDiscount      float64 `json:"totalDiscount"`
	TotalTax           float64 `json:"totalTax"`
	PriceAfterDiscount float64 `json:"priceAfterDiscount"`
}
