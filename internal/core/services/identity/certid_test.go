package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCertID(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"#1234", "1234", true},
		{"Cert. #0042", "42", true},
		{"BSI-DSZ-CC-0754-2012", "7542012", true},
		{"000", "0", true},
		{"no digits", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeCertID(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
