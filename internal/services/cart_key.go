package services

import (
	"sort"
	"strconv"
	"strings"

	domain "github.com/tavola-kitchen/api/internal/domain"
)

// LineItemKey derives the identity of a product configuration. Entries of every map and
// every id list are sorted first, so the order in which choices were made never matters,
// while any change of option, checked state or quantity yields a different key. Ids are
// quoted, so separators inside an id cannot make two configurations collide.
func LineItemKey(productID string, sel domain.ItemSelection) string {
	variationParts := make([]string, 0, len(sel.Variations))
	for id, choice := range sel.Variations {
		variationParts = append(variationParts, strconv.Quote(id)+"="+quoteAll(domain.SortedOptionIDs(choice)))
	}
	sort.Strings(variationParts)

	addonParts := make([]string, 0, len(sel.Addons))
	for id, addon := range sel.Addons {
		addonParts = append(addonParts, strconv.Quote(id)+"="+strconv.FormatBool(addon.Checked)+"x"+strconv.Itoa(addon.Quantity))
	}
	sort.Strings(addonParts)

	excludes := append([]string(nil), sel.Excludes...)
	sort.Strings(excludes)

	extraParts := make([]string, 0, len(sel.Extras))
	for id, qty := range sel.Extras {
		extraParts = append(extraParts, strconv.Quote(id)+"="+strconv.Itoa(qty))
	}
	sort.Strings(extraParts)

	return strings.Join([]string{
		strconv.Quote(strings.TrimSpace(productID)),
		"v:" + strings.Join(variationParts, ";"),
		"a:" + strings.Join(addonParts, ";"),
		"x:" + quoteAll(excludes),
		"e:" + strings.Join(extraParts, ";"),
	}, "|")
}

func quoteAll(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = strconv.Quote(id)
	}
	return strings.Join(quoted, ",")
}
