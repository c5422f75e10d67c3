package schema

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/form-extractor/constants"
)

// Coerce maps a loose model object onto the canonical Document. It never
// fails, and Coerce(x) re-encoded and coerced again yields the same Document.
func Coerce(o *Object) Document {
	if o == nil {
		o = NewObject()
	}
	c := &coercer{src: o}
	c.readCanonicalScalars()

	switch Classify(o) {
	case ShapeCanonical:
		c.coerceCanonical()
	case ShapeNested:
		c.coerceNested()
	default:
		c.coerceFlat()
	}
	c.finish()
	return c.doc
}

type coercer struct {
	src *Object
	doc Document

	// fields folded into General Information after shape handling;
	// unrecognized entity buckets go last
	extra        []Field
	entityExtras []Field
}

// loose yields the keys not consumed as canonical values, in source order.
func (c *coercer) loose(fn func(key string, v any)) {
	for _, k := range c.src.Keys() {
		v, _ := c.src.Get(k)
		if consumable(k, v) {
			continue
		}
		fn(k, v)
	}
}

func (c *coercer) readCanonicalScalars() {
	c.doc.DocumentType = constants.DefaultDocumentType
	c.doc.Summary = constants.DefaultSummary
	c.doc.ConfidenceScore = constants.DefaultConfidenceScore
	c.doc.UnclearFields = []string{}

	if v, ok := c.consumed(keyDocumentType); ok {
		if s := strings.TrimSpace(Stringify(v)); s != "" {
			c.doc.DocumentType = s
		}
	}
	if v, ok := c.consumed(keySummary); ok {
		if s := strings.TrimSpace(Stringify(v)); s != "" {
			c.doc.Summary = s
		}
	}
	if v, ok := c.consumed(keySignaturesDetected); ok {
		if b, ok := asBool(v); ok {
			c.doc.SignaturesDetected = b
		}
	}
	if v, ok := c.consumed(keyConfidenceScore); ok {
		if f, ok := asNumber(v); ok {
			c.doc.ConfidenceScore = clampScore(f)
		}
	}
	if v, ok := c.consumed(keyUnclearFields); ok {
		if list := stringList(v); list != nil {
			c.doc.UnclearFields = list
		}
	}
	if v, ok := c.consumed(keyTables); ok {
		c.doc.Tables = readTables(v)
	}
	if v, ok := c.consumed(keyKeyEntities); ok {
		if obj, ok := v.(*Object); ok {
			c.readEntities(obj)
		}
	}
}

func (c *coercer) consumed(key string) (any, bool) {
	v, ok := c.src.Get(key)
	if !ok || !consumable(key, v) {
		return nil, false
	}
	return v, true
}

// clampScore maps a model score into [0,1]; values in (1,100] are read as percentages.
func clampScore(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f <= 1:
		return f
	case f <= 100:
		return f / 100
	default:
		return 1
	}
}

func (c *coercer) readEntities(obj *Object) {
	ke := &c.doc.KeyEntities
	for _, k := range obj.Keys() {
		v, _ := obj.Get(k)
		values := stringList(v)
		kind, ok := constants.CanonicalizeEntityKind(k)
		if !ok {
			if len(values) > 0 {
				c.entityExtras = append(c.entityExtras, Field{FieldName: keyKeyEntities + "." + k, FieldValue: Stringify(v)})
			}
			continue
		}
		switch kind {
		case constants.EntityPersonNames:
			ke.PersonNames = append(ke.PersonNames, values...)
		case constants.EntityOrganizations:
			ke.Organizations = append(ke.Organizations, values...)
		case constants.EntityDates:
			ke.Dates = append(ke.Dates, values...)
		case constants.EntityEmails:
			ke.Emails = append(ke.Emails, values...)
		case constants.EntityPhoneNumbers:
			ke.PhoneNumbers = append(ke.PhoneNumbers, values...)
		case constants.EntityAddresses:
			ke.Addresses = append(ke.Addresses, values...)
		case constants.EntityIDNumbers:
			ke.IDNumbers = append(ke.IDNumbers, values...)
		case constants.EntityAmounts:
			ke.Amounts = append(ke.Amounts, values...)
		}
	}
}

// coerceCanonical trusts the sections list and folds every other
// unknown key into General Information.
func (c *coercer) coerceCanonical() {
	v, _ := c.src.Get(keySections)
	c.doc.Sections = readSections(v)
	c.loose(func(key string, v any) {
		c.extra = append(c.extra, Field{FieldName: key, FieldValue: Stringify(v)})
	})
}

// coerceFlat puts every loose key into a single General Information section.
func (c *coercer) coerceFlat() {
	var general []Field
	c.loose(func(key string, v any) {
		general = append(general, Field{FieldName: key, FieldValue: Stringify(v)})
	})
	c.doc.Sections = []Section{}
	if len(general) > 0 {
		c.doc.Sections = append(c.doc.Sections, Section{SectionName: constants.GeneralSectionName, Fields: general})
	}
}

// coerceNested turns each mapping-valued key into its own section and
// collects scalars and lists into General Information, placed first.
func (c *coercer) coerceNested() {
	var general []Field
	var nested []Section
	c.loose(func(key string, v any) {
		obj, ok := v.(*Object)
		if !ok {
			general = append(general, Field{FieldName: key, FieldValue: Stringify(v)})
			return
		}
		sec := Section{SectionName: key, Fields: []Field{}}
		for _, nk := range obj.Keys() {
			nv, _ := obj.Get(nk)
			sec.Fields = append(sec.Fields, Field{FieldName: nk, FieldValue: Stringify(nv)})
		}
		nested = append(nested, sec)
	})
	c.doc.Sections = make([]Section, 0, len(nested)+1)
	if len(general) > 0 {
		c.doc.Sections = append(c.doc.Sections, Section{SectionName: constants.GeneralSectionName, Fields: general})
	}
	c.doc.Sections = append(c.doc.Sections, nested...)
}

// finish merges extra fields into General Information.
func (c *coercer) finish() {
	if c.doc.Sections == nil {
		c.doc.Sections = []Section{}
	}
	c.extra = append(c.extra, c.entityExtras...)
	if len(c.extra) == 0 {
		return
	}
	for i := range c.doc.Sections {
		if strings.EqualFold(c.doc.Sections[i].SectionName, constants.GeneralSectionName) {
			c.doc.Sections[i].Fields = append(c.doc.Sections[i].Fields, c.extra...)
			return
		}
	}
	gi := Section{SectionName: constants.GeneralSectionName, Fields: c.extra}
	c.doc.Sections = append([]Section{gi}, c.doc.Sections...)
}

func readSections(v any) []Section {
	list, _ := v.([]any)
	out := make([]Section, 0, len(list))
	for i, item := range list {
		obj, ok := item.(*Object)
		if !ok {
			continue
		}
		name, ok := firstString(obj, "section_name", "name", "title")
		if !ok {
			name = fmt.Sprintf("Section %d", i+1)
		}
		fv, _ := obj.Get("fields")
		out = append(out, Section{SectionName: name, Fields: readFields(fv)})
	}
	return out
}

func readFields(v any) []Field {
	out := []Field{}
	switch t := v.(type) {
	case []any:
		for i, item := range t {
			obj, ok := item.(*Object)
			if !ok {
				out = append(out, Field{FieldName: fmt.Sprintf("Item %d", i+1), FieldValue: Stringify(item)})
				continue
			}
			out = append(out, readField(obj, i))
		}
	case *Object:
		// a mapping of name to value
		for _, k := range t.Keys() {
			fv, _ := t.Get(k)
			out = append(out, Field{FieldName: k, FieldValue: Stringify(fv)})
		}
	}
	return out
}

func readField(obj *Object, idx int) Field {
	name, ok := firstString(obj, "field_name", "name", "label", "key")
	if !ok {
		name = fmt.Sprintf("Item %d", idx+1)
	}
	f := Field{FieldName: name}
	for _, k := range []string{"field_value", "value"} {
		if fv, ok := obj.Get(k); ok {
			f.FieldValue = Stringify(fv)
			break
		}
	}
	if cv, ok := obj.Get("confidence"); ok {
		if conf, ok := ParseConfidence(Stringify(cv)); ok {
			f.Confidence = conf
		}
	}
	return f
}

func readTables(v any) []Table {
	list, _ := v.([]any)
	if len(list) == 0 {
		return nil
	}
	out := make([]Table, 0, len(list))
	for i, item := range list {
		obj, ok := item.(*Object)
		if !ok {
			continue
		}
		name, ok := firstString(obj, "table_name", "name", "title")
		if !ok {
			name = fmt.Sprintf("Table %d", i+1)
		}
		t := Table{TableName: name, Headers: []string{}, Rows: [][]string{}}
		if hv, ok := obj.Get("headers"); ok {
			if h := stringList(hv); h != nil {
				t.Headers = h
			}
		}
		if rv, ok := obj.Get("rows"); ok {
			rows, _ := rv.([]any)
			for _, row := range rows {
				switch r := row.(type) {
				case []any:
					cells := make([]string, 0, len(r))
					for _, cell := range r {
						cells = append(cells, Stringify(cell))
					}
					t.Rows = append(t.Rows, cells)
				case *Object:
					cells := make([]string, 0, r.Len())
					for _, k := range r.Keys() {
						cv, _ := r.Get(k)
						cells = append(cells, Stringify(cv))
					}
					t.Rows = append(t.Rows, cells)
				default:
					t.Rows = append(t.Rows, []string{Stringify(r)})
				}
			}
		}
		out = append(out, t)
	}
	return out
}

// firstString returns the first non-null value among keys. Present values
// are kept verbatim, even when empty, so a second pass reads them back unchanged.
func firstString(obj *Object, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := obj.Get(k); ok && v != nil {
			return Stringify(v), true
		}
	}
	return "", false
}
