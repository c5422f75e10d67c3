package common

import (
	"errors"
	"strings"
	"testing"
)

func TestValidator(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		want     string
	}{
		{"ok", "form.png", []byte("x"), ""},
		{"heic ok", "IMG_001.HEIC", []byte("x"), ""},
		{"missing name", "", []byte("x"), "is required"},
		{"bad ext", "form.pdf", []byte("x"), "image extension"},
		{"empty data", "form.png", nil, "must not be empty"},
		{"too big", "form.png", []byte("12345"), "at most 4 bytes"},
		{"long name", strings.Repeat("a", 300) + ".png", []byte("x"), "at most 255"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator().
				Field("filename", tt.filename, Required, MaxLen(255), ImageExtension).
				Field("file", tt.data, MaxBytes(4))
			err := v.AsAppError()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("err does not wrap ErrValidation")
			}
		})
	}
}

func TestUUIDRule(t *testing.T) {
	if err := UUID("id", "not-a-uuid"); err == nil {
		t.Error("accepted bad uuid")
	}
	if err := UUID("id", "9b2f3c1e-8d4a-4f6b-9c2d-1a2b3c4d5e6f"); err != nil {
		t.Errorf("rejected valid uuid: %v", err)
	}
}
