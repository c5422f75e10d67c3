package schema

import (
	"encoding/json"
	"testing"
)

func TestParseObjectPreservesKeyOrder(t *testing.T) {
	in := `{"zeta":1,"alpha":{"b":true,"a":null},"mid":[1,"two",{"y":2,"x":1}]}`
	obj, err := ParseObject([]byte(in))
	if err != nil {
		t.Fatalf("ParseObject: %v", err)
	}
	want := []string{"zeta", "alpha", "mid"}
	got := obj.Keys()
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keys = %v, want %v", got, want)
		}
	}
	out, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != in {
		t.Fatalf("round trip:\n got %s\nwant %s", out, in)
	}
}

func TestParseObjectRejectsNonObjects(t *testing.T) {
	cases := []string{
		`[1,2]`,
		`"text"`,
		`42`,
		`{"a":1} trailing`,
		`{"a":1}{"b":2}`,
		`{"a":`,
		``,
	}
	for _, tc := range cases {
		if _, err := ParseObject([]byte(tc)); err == nil {
			t.Errorf("ParseObject(%q) succeeded, want error", tc)
		}
	}
}

func TestObjectSetKeepsFirstPosition(t *testing.T) {
	obj := NewObject()
	obj.Set("a", "1")
	obj.Set("b", "2")
	obj.Set("a", "3")

	if obj.Len() != 2 {
		t.Fatalf("Len = %d, want 2", obj.Len())
	}
	v, _ := obj.Get("a")
	if v != "3" {
		t.Fatalf("a = %v, want 3", v)
	}
	out, _ := json.Marshal(obj)
	if string(out) != `{"a":"3","b":"2"}` {
		t.Fatalf("marshal = %s", out)
	}
}

func TestObjectMarshalDoesNotEscapeHTML(t *testing.T) {
	obj := NewObject()
	obj.Set("note", "<b>&</b>")
	out, err := obj.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"note":"<b>&</b>"}` {
		t.Fatalf("marshal = %s", out)
	}
}
