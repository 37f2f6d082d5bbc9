package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// flexString accepts JSON strings and numbers. Catalog payloads use both for ids.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("domain: id must be a string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// flexBool accepts booleans and the 0/1 integers used by quantity_add.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "", "null", "false", "0", `"0"`, `""`:
		*f = false
		return nil
	case "true", "1", `"1"`:
		*f = true
		return nil
	}
	if n, err := strconv.ParseFloat(string(data), 64); err == nil {
		*f = n != 0
		return nil
	}
	return fmt.Errorf("domain: invalid flag value %s", string(data))
}

type productWire struct {
	ID                 flexString  `json:"id"`
	Name               string      `json:"name"`
	Price              float64     `json:"price"`
	PriceAfterDiscount *float64    `json:"price_after_discount"`
	TaxObj             *TaxSpec    `json:"tax_obj"`
	Taxes              *TaxSpec    `json:"taxes"`
	Variations         []Variation `json:"variations"`
	Addons             []Addon     `json:"addons"`
	Extras             []Extra     `json:"allExtras"`
}

// UnmarshalJSON accepts the catalog product shape, including the tax_obj/taxes aliases.
func (p *Product) UnmarshalJSON(data []byte) error {
	var wire productWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	tax := wire.TaxObj
	if tax == nil {
		tax = wire.Taxes
	}
	*p = Product{
		ID:                 string(wire.ID),
		Name:               wire.Name,
		Price:              wire.Price,
		PriceAfterDiscount: wire.PriceAfterDiscount,
		Tax:                tax,
		Variations:         wire.Variations,
		Addons:             wire.Addons,
		Extras:             wire.Extras,
	}
	return nil
}

// UnmarshalJSON normalises variation ids.
func (v *Variation) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID       flexString        `json:"id"`
		Name     string            `json:"name"`
		Multiple flexBool          `json:"multiple"`
		Required flexBool          `json:"required"`
		Options  []VariationOption `json:"options"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*v = Variation{
		ID:       string(wire.ID),
		Name:     wire.Name,
		Multiple: bool(wire.Multiple),
		Required: bool(wire.Required),
		Options:  wire.Options,
	}
	return nil
}

// UnmarshalJSON normalises option ids.
func (o *VariationOption) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID    flexString `json:"id"`
		Name  string     `json:"name"`
		Price float64    `json:"price"`
		Tax   *TaxSpec   `json:"taxes"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*o = VariationOption{ID: string(wire.ID), Name: wire.Name, Price: wire.Price, Tax: wire.Tax}
	return nil
}

// UnmarshalJSON normalises addon ids and the quantity_add flag.
func (a *Addon) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID          flexString `json:"id"`
		Name        string     `json:"name"`
		Price       float64    `json:"price"`
		Tax         *TaxSpec   `json:"tax"`
		QuantityAdd flexBool   `json:"quantity_add"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*a = Addon{
		ID:                 string(wire.ID),
		Name:               wire.Name,
		Price:              wire.Price,
		Tax:                wire.Tax,
		QuantityAdjustable: bool(wire.QuantityAdd),
	}
	return nil
}

// UnmarshalJSON normalises extra ids and dependency references.
func (e *Extra) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID                 flexString `json:"id"`
		Name               string     `json:"name"`
		Price              float64    `json:"price"`
		PriceAfterDiscount *float64   `json:"price_after_discount"`
		Min                int        `json:"min"`
		Max                int        `json:"max"`
		VariationID        flexString `json:"variation_id"`
		OptionID           flexString `json:"option_id"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*e = Extra{
		ID:                 string(wire.ID),
		Name:               wire.Name,
		Price:              wire.Price,
		PriceAfterDiscount: wire.PriceAfterDiscount,
		Min:                wire.Min,
		Max:                wire.Max,
		VariationID:        string(wire.VariationID),
		OptionID:           string(wire.OptionID),
	}
	return nil
}

// ErrEmptyCatalog is returned when a catalog document holds no products.
var ErrEmptyCatalog = errors.New("domain: catalog contains no products")

// DecodeCatalog parses a catalog document. Both a bare array and an object with a
// "products" array are accepted. Products without an id are rejected.
func DecodeCatalog(data []byte) ([]Product, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyCatalog
	}
	var products []Product
	if data[0] == '[' {
		if err := json.Unmarshal(data, &products); err != nil {
			return nil, fmt.Errorf("domain: decode catalog: %w", err)
		}
	} else {
		var doc struct {
			Products []Product `json:"products"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("domain: decode catalog: %w", err)
		}
		products = doc.Products
	}
	if len(products) == 0 {
		return nil, ErrEmptyCatalog
	}
	for idx, product := range products {
		if product.ID == "" {
			return nil, fmt.Errorf("domain: catalog product at index %d has no id", idx)
		}
	}
	return products, nil
}
