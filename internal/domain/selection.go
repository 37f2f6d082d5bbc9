package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Selection is the option choice made for one variation. It is either a SingleOption
// or a MultipleOptions value.
type Selection interface {
	isSelection()
}

// SingleOption selects exactly one option of a single-select variation.
type SingleOption struct {
	ID string
}

// MultipleOptions selects an ordered list of options of a multi-select variation.
type MultipleOptions struct {
	IDs []string
}

func (SingleOption) isSelection()    {}
func (MultipleOptions) isSelection() {}

// OptionIDs lists the option ids chosen by the selection in their stored order.
func OptionIDs(sel Selection) []string {
	switch s := sel.(type) {
	case SingleOption:
		if s.ID == "" {
			return nil
		}
		return []string{s.ID}
	case MultipleOptions:
		return append([]string(nil), s.IDs...)
	default:
		return nil
	}
}

// SortedOptionIDs lists the option ids in lexical order.
func SortedOptionIDs(sel Selection) []string {
	ids := OptionIDs(sel)
	sort.Strings(ids)
	return ids
}

func cloneSelection(sel Selection) Selection {
	if multi, ok := sel.(MultipleOptions); ok {
		return MultipleOptions{IDs: append([]string(nil), multi.IDs...)}
	}
	return sel
}

// VariationSelections maps variation ids to their selection. On the wire a single
// selection is a scalar and a multiple selection is an array.
type VariationSelections map[string]Selection

// MarshalJSON implements json.Marshaler.
func (v VariationSelections) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	raw := make(map[string]any, len(v))
	for id, sel := range v {
		switch s := sel.(type) {
		case SingleOption:
			raw[id] = s.ID
		case MultipleOptions:
			ids := s.IDs
			if ids == nil {
				ids = []string{}
			}
			raw[id] = ids
		default:
			return nil, fmt.Errorf("domain: unsupported selection %T for variation %s", sel, id)
		}
	}
	return json.Marshal(raw)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *VariationSelections) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*v = nil
		return nil
	}
	out := make(VariationSelections, len(raw))
	for id, value := range raw {
		value = bytes.TrimSpace(value)
		if len(value) > 0 && value[0] == '[' {
			var ids []flexString
			if err := json.Unmarshal(value, &ids); err != nil {
				return fmt.Errorf("domain: variation %s: %w", id, err)
			}
			list := make([]string, 0, len(ids))
			for _, optionID := range ids {
				list = append(list, string(optionID))
			}
			out[id] = MultipleOptions{IDs: list}
			continue
		}
		var single flexString
		if err := json.Unmarshal(value, &single); err != nil {
			return fmt.Errorf("domain: variation %s: %w", id, err)
		}
		out[id] = SingleOption{ID: string(single)}
	}
	*v = out
	return nil
}
