package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type RefKind int

const (
	RefKindNone RefKind = iota
	RefKindID
	RefKindEmbedded
)

// EmbeddedProduct is the populated form of a product reference as returned
// by the catalog and FIFO endpoints.
type EmbeddedProduct struct {
	ObjectID  string `json:"_id,omitempty"`
	ID        string `json:"id,omitempty"`
	ProductID string `json:"productId,omitempty"`
	Code      string `json:"code,omitempty"`
	Name      string `json:"name,omitempty"`
}

// ProductRef points at a catalog product either by bare id or by an embedded
// product document. Resolve is the only place the two forms are unwrapped.
type ProductRef struct {
	Kind     RefKind
	ID       string
	Embedded *EmbeddedProduct
}

func RefFromID(id string) ProductRef {
	return ProductRef{Kind: RefKindID, ID: id}
}

func RefFromEmbedded(p EmbeddedProduct) ProductRef {
	return ProductRef{Kind: RefKindEmbedded, Embedded: &p}
}

// Resolve returns the product id, preferring _id, then id, then productId for
// embedded references. It returns "" when nothing usable is present.
func (r ProductRef) Resolve() string {
	switch r.Kind {
	case RefKindID:
		return strings.TrimSpace(r.ID)
	case RefKindEmbedded:
		if r.Embedded == nil {
			return ""
		}
		for _, candidate := range []string{r.Embedded.ObjectID, r.Embedded.ID, r.Embedded.ProductID} {
			if id := strings.TrimSpace(candidate); id != "" {
				return id
			}
		}
	}
	return ""
}

func (r ProductRef) IsZero() bool {
	return r.Resolve() == ""
}

func (r ProductRef) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RefKindID:
		return json.Marshal(r.ID)
	case RefKindEmbedded:
		if r.Embedded == nil {
			return []byte("null"), nil
		}
		return json.Marshal(r.Embedded)
	default:
		return []byte("null"), nil
	}
}

func (r *ProductRef) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*r = ProductRef{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return fmt.Errorf("product reference: %w", err)
		}
		*r = RefFromID(id)
	case '{':
		var embedded EmbeddedProduct
		if err := json.Unmarshal(trimmed, &embedded); err != nil {
			return fmt.Errorf("product reference: %w", err)
		}
		*r = RefFromEmbedded(embedded)
	default:
		var number json.Number
		if err := json.Unmarshal(trimmed, &number); err != nil {
			return fmt.Errorf("product reference: unsupported value %s", string(trimmed))
		}
		*r = RefFromID(number.String())
	}
	return nil
}
