package cart

import (
	"encoding/json"
	"fmt"
)

func encodeItems(items []LineItem) (string, error) {
	if items == nil {
		items = []LineItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode cart items: %w", err)
	}
	return string(b), nil
}

// decodeItems accepts only a JSON array. Elements that do not decode, repeat
// a product id, or end up with no quantity after clamping are dropped; the
// rest are normalised so the invariants hold.
func decodeItems(raw string) ([]LineItem, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return nil, fmt.Errorf("decode cart items: %w", err)
	}

	out := make([]LineItem, 0, len(elems))
	seen := make(map[int64]struct{}, len(elems))
	for _, e := range elems {
		var it LineItem
		if err := json.Unmarshal(e, &it); err != nil {
			continue
		}
		if it.ProductID == 0 {
			it.ProductID = it.Product.ID
		}
		if _, dup := seen[it.ProductID]; dup {
			continue
		}
		if it.Product.ID == 0 {
			it.Product.ID = it.ProductID
		}
		q := it.Product.clamp(it.Quantity)
		if q <= 0 {
			continue
		}
		it.setQuantity(q)
		seen[it.ProductID] = struct{}{}
		out = append(out, it)
	}
	return out, nil
}
