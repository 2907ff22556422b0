package domain

import "time"

// Algorithm is one entry of the FIPS algorithm validation list.
type Algorithm struct {
	Number         string    `json:"number"`
	Vendor         string    `json:"vendor"`
	Implementation string    `json:"implementation"`
	Type           string    `json:"type"`
	Date           time.Time `json:"date,omitempty"`
}

// AlgorithmIndex maps a normalized algorithm certificate number to its vendor.
type AlgorithmIndex map[string]string

// Vendor returns the vendor of an algorithm number, if the number is known.
func (a AlgorithmIndex) Vendor(number string) (string, bool) {
	v, ok := a[number]
	return v, ok
}

// AlgorithmList is a parsed algorithm validation list.
type AlgorithmList struct {
	Algorithms []Algorithm
	Index      AlgorithmIndex
	Skipped    int
}
