package domain

import "testing"

func TestIsValidDigest(t *testing.T) {
	tests := []struct {
		dgst  string
		valid bool
	}{
		{"0123456789abcdef0123456789abcdef", true},
		{"0123456789ABCDEF0123456789ABCDEF", false},
		{"0123456789abcdef", false},
		{"zz23456789abcdef0123456789abcdef", false},
		{"", false},
	}

	for _, tt := range tests {
		if IsValidDigest(tt.dgst) != tt.valid {
			t.Errorf("IsValidDigest(%s) = %v; want %v", tt.dgst, IsValidDigest(tt.dgst), tt.valid)
		}
	}
}

func TestIsValidHashID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"0123456789abcdef0123", true},
		{"0123456789abcdef012", false},
		{"0123456789abcdef0123456789abcdef", false},
		{"", false},
	}

	for _, tt := range tests {
		if IsValidHashID(tt.id) != tt.valid {
			t.Errorf("IsValidHashID(%s) = %v; want %v", tt.id, IsValidHashID(tt.id), tt.valid)
		}
	}
}
