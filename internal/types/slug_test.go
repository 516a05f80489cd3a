package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "Madrid", "madrid"},
		{"spaces", "New York", "new-york"},
		{"punctuation run", "St. John's", "st-john-s"},
		{"multiple separators collapse", "Rio -- de    Janeiro", "rio-de-janeiro"},
		{"leading and trailing noise", "  Oslo!  ", "oslo"},
		{"digits preserved", "District 9", "district-9"},
		{"non-ascii dropped", "Zürich", "z-rich"},
		{"empty", "", ""},
		{"only separators", "---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.input))
		})
	}
}
