package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	doc := map[string]any{
		"total": 6000000.0,
		"requester": map[string]any{
			"manager": "m@corp.com",
			"tags":    []any{"finance", "emea"},
		},
		"empty": nil,
	}

	tests := []struct {
		name  string
		path  string
		want  any
		found bool
	}{
		{"top level", "total", 6000000.0, true},
		{"nested", "requester.manager", "m@corp.com", true},
		{"slice index", "requester.tags.1", "emea", true},
		{"slice out of range", "requester.tags.5", nil, false},
		{"slice bad index", "requester.tags.x", nil, false},
		{"missing leaf", "requester.director", nil, false},
		{"through scalar", "total.amount", nil, false},
		{"explicit null", "empty", nil, true},
		{"empty path", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Lookup(doc, tt.path)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupNonMapDocument(t *testing.T) {
	_, found := Lookup("not a document", "a")
	assert.False(t, found)

	_, found = Lookup(nil, "a.b")
	assert.False(t, found)
}

func TestLookupTypedContainers(t *testing.T) {
	type region string
	doc := map[string]any{
		"limits":  map[string]map[string]any{"emea": {"cap": 500.0}},
		"counts":  map[string]int{"lines": 4},
		"regions": map[region]string{"emea": "Amsterdam"},
		"scores":  []float64{1.5, 2.5},
		"byID":    map[int]string{1: "x"},
	}

	tests := []struct {
		name  string
		path  string
		want  any
		found bool
	}{
		{"nested typed map", "limits.emea.cap", 500.0, true},
		{"typed map leaf", "counts.lines", 4, true},
		{"named string key", "regions.emea", "Amsterdam", true},
		{"typed slice", "scores.1", 2.5, true},
		{"typed map missing key", "counts.pages", nil, false},
		{"non string key", "byID.1", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Lookup(doc, tt.path)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}
