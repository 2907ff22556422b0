package sources

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/services/identity"
)

// AlgorithmParser reads the CAVP algorithm list exported as CSV:
// number, vendor, implementation, type, date.
type AlgorithmParser struct{}

// NewAlgorithmParser creates an algorithm list parser.
func NewAlgorithmParser() *AlgorithmParser {
	return &AlgorithmParser{}
}

// ParseFile parses one algorithm list.
func (p *AlgorithmParser) ParseFile(path string) (*domain.AlgorithmList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open algorithm list: %w", err)
	}
	defer f.Close()

	list, err := p.Parse(f)
	if err != nil {
		return nil, &domain.SourceFormatError{File: path, Err: err}
	}
	log.Printf("[ALGO] Parsed %d algorithms from %s (%d skipped)", len(list.Algorithms), path, list.Skipped)
	return list, nil
}

// Parse reads an algorithm list stream. The first row is a header.
// When a number appears twice the first vendor is kept in the index.
func (p *AlgorithmParser) Parse(r io.Reader) (*domain.AlgorithmList, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	list := &domain.AlgorithmList{Index: make(domain.AlgorithmIndex)}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil || len(row) < 2 {
			list.Skipped++
			continue
		}
		row = pad(row, 5)

		number, ok := identity.NormalizeCertID(row[0])
		if !ok {
			list.Skipped++
			continue
		}
		date, ok := parseDate(row[4])
		if !ok {
			log.Printf("[ALGO] Unparseable date %q for algorithm %s", row[4], number)
		}
		alg := domain.Algorithm{
			Number:         number,
			Vendor:         cleanText(row[1]),
			Implementation: cleanText(row[2]),
			Type:           strings.TrimSpace(row[3]),
			Date:           date,
		}
		list.Algorithms = append(list.Algorithms, alg)
		if _, seen := list.Index[number]; !seen {
			list.Index[number] = alg.Vendor
		}
	}
	return list, nil
}
