package schema

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/joseph-ayodele/form-extractor/constants"
)

func mustParse(t *testing.T, s string) *Object {
	t.Helper()
	obj, err := ParseObject([]byte(s))
	if err != nil {
		t.Fatalf("ParseObject(%s): %v", s, err)
	}
	return obj
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Shape
	}{
		{"canonical", `{"sections":[{"section_name":"A","fields":[]}]}`, ShapeCanonical},
		{"empty sections", `{"document_type":"x","sections":[]}`, ShapeCanonical},
		{"flat", `{"name":"Jane","age":30,"tags":["a"]}`, ShapeFlat},
		{"nested", `{"name":"Jane","address":{"city":"Lagos"}}`, ShapeNested},
		{"reserved mapping is ignored", `{"key_entities":{"dates":["x"]},"name":"Jane"}`, ShapeFlat},
		{"malformed sections", `{"sections":"none"}`, ShapeFlat},
		{"empty", `{}`, ShapeFlat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(mustParse(t, tt.in)); got != tt.want {
				t.Fatalf("Classify = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCoerceFlatOutput(t *testing.T) {
	doc := Coerce(mustParse(t, `{"name":"Jane","dob":"1990-01-01"}`))

	want := []Section{{
		SectionName: constants.GeneralSectionName,
		Fields: []Field{
			{FieldName: "name", FieldValue: "Jane"},
			{FieldName: "dob", FieldValue: "1990-01-01"},
		},
	}}
	if !reflect.DeepEqual(doc.Sections, want) {
		t.Fatalf("sections = %+v, want %+v", doc.Sections, want)
	}
	if doc.DocumentType != "Handwritten Form" {
		t.Errorf("document_type = %q", doc.DocumentType)
	}
	if doc.Summary != "Extracted handwritten form data" {
		t.Errorf("summary = %q", doc.Summary)
	}
	if doc.SignaturesDetected {
		t.Error("signatures_detected should default to false")
	}
	if doc.ConfidenceScore != 0.85 {
		t.Errorf("confidence_score = %v, want 0.85", doc.ConfidenceScore)
	}
	if doc.UnclearFields == nil || len(doc.UnclearFields) != 0 {
		t.Errorf("unclear_fields = %#v, want empty non-nil", doc.UnclearFields)
	}
	if !reflect.DeepEqual(doc.KeyEntities, KeyEntities{}) {
		t.Errorf("key_entities = %+v, want empty", doc.KeyEntities)
	}
}

func TestCoerceNestedOutput(t *testing.T) {
	in := `{
		"applicant": {"name": "Jane", "age": 30},
		"form_id": "F-12",
		"contact": {"email": "jane@example.com", "phones": ["1","2"]},
		"signed": true,
		"notes": null
	}`
	doc := Coerce(mustParse(t, in))

	want := []Section{
		{SectionName: constants.GeneralSectionName, Fields: []Field{
			{FieldName: "form_id", FieldValue: "F-12"},
			{FieldName: "signed", FieldValue: "true"},
			{FieldName: "notes", FieldValue: ""},
		}},
		{SectionName: "applicant", Fields: []Field{
			{FieldName: "name", FieldValue: "Jane"},
			{FieldName: "age", FieldValue: "30"},
		}},
		{SectionName: "contact", Fields: []Field{
			{FieldName: "email", FieldValue: "jane@example.com"},
			{FieldName: "phones", FieldValue: `["1","2"]`},
		}},
	}
	if !reflect.DeepEqual(doc.Sections, want) {
		t.Fatalf("sections:\n got %+v\nwant %+v", doc.Sections, want)
	}
}

func TestCoerceListsAreScalars(t *testing.T) {
	doc := Coerce(mustParse(t, `{"items":["pen",2,{"a":1}]}`))
	if len(doc.Sections) != 1 || len(doc.Sections[0].Fields) != 1 {
		t.Fatalf("sections = %+v", doc.Sections)
	}
	if got := doc.Sections[0].Fields[0].FieldValue; got != `["pen",2,{"a":1}]` {
		t.Fatalf("field_value = %q", got)
	}
}

func TestCoerceCanonicalTrustsSectionsAndFoldsUnknownKeys(t *testing.T) {
	in := `{
		"document_type": "Invoice",
		"summary": "x",
		"sections": [
			{"section_name": "Buyer", "fields": [
				{"field_name": "Name", "field_value": "ACME", "confidence": "HIGH"},
				{"field_name": "Total", "field_value": 12.5, "confidence": "unsure"}
			]}
		],
		"invoice_no": "INV-1",
		"extra": {"k": "v"},
		"key_entities": {"names": ["Jane"], "emails": "a@b.c", "colors": ["red"]},
		"signatures_detected": "yes",
		"confidence_score": 92,
		"unclear_fields": ["Total", null]
	}`
	doc := Coerce(mustParse(t, in))

	if doc.DocumentType != "Invoice" || doc.Summary != "x" {
		t.Fatalf("document_type/summary = %q/%q", doc.DocumentType, doc.Summary)
	}
	want := []Section{
		{SectionName: constants.GeneralSectionName, Fields: []Field{
			{FieldName: "invoice_no", FieldValue: "INV-1"},
			{FieldName: "extra", FieldValue: `{"k":"v"}`},
			{FieldName: "key_entities.colors", FieldValue: `["red"]`},
		}},
		{SectionName: "Buyer", Fields: []Field{
			{FieldName: "Name", FieldValue: "ACME", Confidence: ConfidenceHigh},
			{FieldName: "Total", FieldValue: "12.5"},
		}},
	}
	if !reflect.DeepEqual(doc.Sections, want) {
		t.Fatalf("sections:\n got %+v\nwant %+v", doc.Sections, want)
	}
	if !reflect.DeepEqual(doc.KeyEntities.PersonNames, []string{"Jane"}) {
		t.Errorf("person_names = %v", doc.KeyEntities.PersonNames)
	}
	if !reflect.DeepEqual(doc.KeyEntities.Emails, []string{"a@b.c"}) {
		t.Errorf("emails = %v", doc.KeyEntities.Emails)
	}
	if !doc.SignaturesDetected {
		t.Error("signatures_detected should be true")
	}
	if doc.ConfidenceScore != 0.92 {
		t.Errorf("confidence_score = %v, want 0.92", doc.ConfidenceScore)
	}
	if !reflect.DeepEqual(doc.UnclearFields, []string{"Total"}) {
		t.Errorf("unclear_fields = %v", doc.UnclearFields)
	}
}

func TestCoerceAppendsToExistingGeneralSection(t *testing.T) {
	in := `{"sections":[{"section_name":"Header","fields":[]},{"section_name":"General Information","fields":[{"field_name":"a","field_value":"1"}]}],"b":"2"}`
	doc := Coerce(mustParse(t, in))
	if len(doc.Sections) != 2 {
		t.Fatalf("sections = %+v", doc.Sections)
	}
	gi := doc.Sections[1]
	if len(gi.Fields) != 2 || gi.Fields[1].FieldName != "b" {
		t.Fatalf("general section = %+v", gi)
	}
}

func TestCoerceNeverDropsMalformedCanonicalKeys(t *testing.T) {
	doc := Coerce(mustParse(t, `{"summary":{"text":"hi"},"tables":"none","sections":"none"}`))
	names := map[string]bool{}
	for _, s := range doc.Sections {
		names[s.SectionName] = true
		for _, f := range s.Fields {
			names[f.FieldName] = true
		}
	}
	for _, k := range []string{"summary", "tables", "sections"} {
		if !names[k] {
			t.Errorf("key %q was dropped; sections = %+v", k, doc.Sections)
		}
	}
	if doc.Summary != "Extracted handwritten form data" {
		t.Errorf("summary = %q, want default", doc.Summary)
	}
}

func TestCoerceTables(t *testing.T) {
	in := `{"sections":[],"tables":[{"table_name":"Items","headers":["Qty","Item"],"rows":[[1,"Pen"],{"q":2,"i":"Ink"},"loose"]}]}`
	doc := Coerce(mustParse(t, in))
	want := []Table{{
		TableName: "Items",
		Headers:   []string{"Qty", "Item"},
		Rows:      [][]string{{"1", "Pen"}, {"2", "Ink"}, {"loose"}},
	}}
	if !reflect.DeepEqual(doc.Tables, want) {
		t.Fatalf("tables = %+v, want %+v", doc.Tables, want)
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-1, 0}, {0, 0}, {0.4, 0.4}, {1, 1}, {50, 0.5}, {100, 1}, {250, 1},
	}
	for _, tt := range tests {
		if got := clampScore(tt.in); got != tt.want {
			t.Errorf("clampScore(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCoerceIsIdempotent(t *testing.T) {
	inputs := []string{
		`{}`,
		`{"name":"Jane","dob":"1990-01-01"}`,
		`{"applicant":{"name":"Jane","meta":{"x":1}},"id":7,"":{"k":"v"}," spaced ":"v"}`,
		`{"document_type":" Permit ","sections":[{"fields":["loose",{"value":3}]},{"section_name":"","fields":{"a":1}}],"z":[1,2]}`,
		`{"sections":[],"tables":[{"headers":[null,"b"],"rows":[null,[[1]]]}],"confidence_score":"75%"}`,
		`{"key_entities":{"people":["A"],"odd":{"x":1}},"signatures_detected":"maybe","unclear_fields":"dob"}`,
	}
	for _, in := range inputs {
		first := Coerce(mustParse(t, in))
		obj, err := first.Object()
		if err != nil {
			t.Fatalf("Object(): %v", err)
		}
		second := Coerce(obj)
		if !reflect.DeepEqual(first, second) {
			a, _ := json.Marshal(first)
			b, _ := json.Marshal(second)
			t.Errorf("not idempotent for %s\n first %s\nsecond %s", in, a, b)
		}
	}
}

func TestCoerceOutputSatisfiesSchema(t *testing.T) {
	inputs := []string{
		`{}`,
		`{"name":"Jane","address":{"city":"Lagos"}}`,
		`{"sections":[{"section_name":"A","fields":[{"field_name":"x","field_value":"1","confidence":"low"}]}],"tables":[{"table_name":"T","headers":["h"],"rows":[["c"]]}]}`,
	}
	for _, in := range inputs {
		doc := Coerce(mustParse(t, in))
		if err := Validate(doc); err != nil {
			t.Errorf("Validate(%s): %v", in, err)
		}
	}
}

func TestCoerceNil(t *testing.T) {
	doc := Coerce(nil)
	if doc.Sections == nil || doc.UnclearFields == nil {
		t.Fatalf("nil slices in %+v", doc)
	}
}
