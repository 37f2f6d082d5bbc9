package domain

// TaxType indicates how a tax amount is derived from a price.
type TaxType string

const (
	// TaxTypePercentage treats the amount as a percentage of the price.
	TaxTypePercentage TaxType = "percentage"
	// TaxTypeFixed treats the amount as an absolute value per unit.
	TaxTypeFixed TaxType = "fixed"
)

// TaxSetting indicates whether a quoted price already contains its tax.
type TaxSetting string

const (
	// TaxSettingIncluded means the price already contains the tax; the tax is informational.
	TaxSettingIncluded TaxSetting = "included"
	// TaxSettingExcluded means the tax is payable on top of the price.
	TaxSettingExcluded TaxSetting = "excluded"
)

// TaxSpec describes the tax applied to a priced component.
type TaxSpec struct {
	Amount  float64    `json:"amount"`
	Type    TaxType    `json:"type"`
	Setting TaxSetting `json:"setting"`
}

// IsZero reports whether the spec carries no tax.
func (t *TaxSpec) IsZero() bool {
	return t == nil || t.Amount == 0
}

// Product is the read-only catalog snapshot attached to a line item.
type Product struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name,omitempty"`
	Price              float64     `json:"price"`
	PriceAfterDiscount *float64    `json:"price_after_discount,omitempty"`
	Tax                *TaxSpec    `json:"tax_obj,omitempty"`
	Variations         []Variation `json:"variations,omitempty"`
	Addons             []Addon     `json:"addons,omitempty"`
	Extras             []Extra     `json:"allExtras,omitempty"`
}

// Variation is a user-selectable attribute group such as size.
type Variation struct {
	ID       string            `json:"id"`
	Name     string            `json:"name,omitempty"`
	Multiple bool              `json:"multiple,omitempty"`
	Required bool              `json:"required,omitempty"`
	Options  []VariationOption `json:"options"`
}

// VariationOption is a single choice within a variation with its own price delta.
type VariationOption struct {
	ID    string   `json:"id"`
	Name  string   `json:"name,omitempty"`
	Price float64  `json:"price"`
	Tax   *TaxSpec `json:"taxes,omitempty"`
}

// Addon is an optional component priced and taxed independently from the product.
type Addon struct {
	ID    string   `json:"id"`
	Name  string   `json:"name,omitempty"`
	Price float64  `json:"price"`
	Tax   *TaxSpec `json:"tax,omitempty"`
	// QuantityAdjustable mirrors quantity_add=1 in catalog payloads.
	QuantityAdjustable bool `json:"quantity_add"`
}

// Extra is an untaxed add-on that may depend on a specific variation option.
type Extra struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name,omitempty"`
	Price              float64  `json:"price"`
	PriceAfterDiscount *float64 `json:"price_after_discount,omitempty"`
	Min                int      `json:"min,omitempty"`
	Max                int      `json:"max,omitempty"`
	VariationID        string   `json:"variation_id,omitempty"`
	OptionID           string   `json:"option_id,omitempty"`
}

// HasDependency reports whether the extra is only available with a given variation option.
func (e Extra) HasDependency() bool {
	return e.VariationID != "" && e.OptionID != ""
}

// Variation returns the variation with the given id.
func (p Product) Variation(id string) (Variation, bool) {
	for _, v := range p.Variations {
		if v.ID == id {
			return v, true
		}
	}
	return Variation{}, false
}

// Option returns the option with the given id.
func (v Variation) Option(id string) (VariationOption, bool) {
	for _, o := range v.Options {
		if o.ID == id {
			return o, true
		}
	}
	return VariationOption{}, false
}

// Addon returns the addon with the given id.
func (p Product) Addon(id string) (Addon, bool) {
	for _, a := range p.Addons {
		if a.ID == id {
			return a, true
		}
	}
	return Addon{}, false
}

// Extra returns the extra with the given id.
func (p Product) Extra(id string) (Extra, bool) {
	for _, e := range p.Extras {
		if e.ID == id {
			return e, true
		}
	}
	return Extra{}, false
}

// AddonSelection records whether an addon is checked and how many units were requested.
type AddonSelection struct {
	Checked  bool `json:"checked"`
	Quantity int  `json:"quantity"`
}

// ItemSelection is the full configuration chosen for a product.
type ItemSelection struct {
	Variations VariationSelections       `json:"variations,omitempty"`
	Addons     map[string]AddonSelection `json:"addons,omitempty"`
	Excludes   []string                  `json:"excludes,omitempty"`
	Extras     map[string]int            `json:"extras,omitempty"`
}

// Clone returns a deep copy of the selection.
func (s ItemSelection) Clone() ItemSelection {
	out := ItemSelection{}
	if s.Variations != nil {
		out.Variations = make(VariationSelections, len(s.Variations))
		for id, sel := range s.Variations {
			out.Variations[id] = cloneSelection(sel)
		}
	}
	if s.Addons != nil {
		out.Addons = make(map[string]AddonSelection, len(s.Addons))
		for id, a := range s.Addons {
			out.Addons[id] = a
		}
	}
	if s.Excludes != nil {
		out.Excludes = append([]string(nil), s.Excludes...)
	}
	if s.Extras != nil {
		out.Extras = make(map[string]int, len(s.Extras))
		for id, q := range s.Extras {
			out.Extras[id] = q
		}
	}
	return out
}

// LineItem is one distinct product configuration held in the cart.
type LineItem struct {
	ID         string     `json:"id"`
	Key        string     `json:"key"`
	Product    Product    `json:"product"`
	Quantity   int        `json:"quantity"`
	Note       string     `json:"note,omitempty"`
	TotalPrice float64    `json:"totalPrice"`
	TaxDetails TaxDetails `json:"taxDetails"`
	ItemSelection
}

// Clone returns a deep copy of the line item.
func (i LineItem) Clone() LineItem {
	out := i
	out.ItemSelection = i.ItemSelection.Clone()
	out.TaxDetails.Breakdown = append([]TaxBreakdownEntry(nil), i.TaxDetails.Breakdown...)
	return out
}

// Cart is the aggregate root: ordered line items plus totals derived from them.
type Cart struct {
	Items []LineItem `json:"items"`
	CartTotals
}

// Clone returns a deep copy of the cart.
func (c Cart) Clone() Cart {
	out := Cart{CartTotals: c.CartTotals, Items: make([]LineItem, 0, len(c.Items))}
	for _, item := range c.Items {
		out.Items = append(out.Items, item.Clone())
	}
	return out
}

// FindItem returns the index of the line item with the given id, or -1.
func (c Cart) FindItem(id string) int {
	for idx, item := range c.Items {
		if item.ID == id {
			return idx
		}
	}
	return -1
}
