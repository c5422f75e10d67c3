package schema

// Shape tags how a loose model object relates to the canonical schema.
type Shape int

const (
	// ShapeCanonical carries a well-formed sections list.
	ShapeCanonical Shape = iota
	// ShapeFlat has no mapping-valued keys outside the canonical ones.
	ShapeFlat
	// ShapeNested has at least one mapping-valued non-canonical key.
	ShapeNested
)

func (s Shape) String() string {
	switch s {
	case ShapeCanonical:
		return "canonical"
	case ShapeFlat:
		return "flat"
	case ShapeNested:
		return "nested"
	}
	return "unknown"
}

// Canonical top-level keys.
const (
	keyDocumentType       = "document_type"
	keySummary            = "summary"
	keySections           = "sections"
	keyTables             = "tables"
	keyKeyEntities        = "key_entities"
	keySignaturesDetected = "signatures_detected"
	keyConfidenceScore    = "confidence_score"
	keyUnclearFields      = "unclear_fields"
)

var reservedKeys = map[string]struct{}{
	keyDocumentType:       {},
	keySummary:            {},
	keySections:           {},
	keyTables:             {},
	keyKeyEntities:        {},
	keySignaturesDetected: {},
	keyConfidenceScore:    {},
	keyUnclearFields:      {},
}

// consumable reports whether a canonical key's value can be read as its
// schema type. Canonical keys with unreadable values are treated like
// unknown keys so their content is never dropped.
func consumable(key string, v any) bool {
	if _, ok := reservedKeys[key]; !ok {
		return false
	}
	switch key {
	case keyDocumentType, keySummary:
		return isScalar(v)
	case keySections:
		return isObjectList(v)
	case keyTables:
		return v == nil || isObjectList(v)
	case keyKeyEntities:
		if v == nil {
			return true
		}
		_, ok := v.(*Object)
		return ok
	case keySignaturesDetected:
		if v == nil {
			return true
		}
		_, ok := asBool(v)
		return ok
	case keyConfidenceScore:
		if v == nil {
			return true
		}
		_, ok := asNumber(v)
		return ok
	case keyUnclearFields:
		if v == nil || isScalar(v) {
			return true
		}
		list, ok := v.([]any)
		if !ok {
			return false
		}
		for _, item := range list {
			if !isScalar(item) {
				return false
			}
		}
		return true
	}
	return false
}

func isObjectList(v any) bool {
	list, ok := v.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		if _, ok := item.(*Object); !ok {
			return false
		}
	}
	return true
}

// Classify tags a loose object with its shape.
func Classify(o *Object) Shape {
	if v, ok := o.Get(keySections); ok && consumable(keySections, v) {
		return ShapeCanonical
	}
	for _, k := range o.Keys() {
		v, _ := o.Get(k)
		if consumable(k, v) {
			continue
		}
		if _, ok := v.(*Object); ok {
			return ShapeNested
		}
	}
	return ShapeFlat
}
