package sources

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/services/identity"
)

// Canonical names of the portal CSV columns, in file order.
var csvColumns = []string{
	"category", "cert_name", "manufacturer", "scheme", "security_level", "protection_profiles",
	"not_valid_before", "not_valid_after", "report_link", "st_link",
	"maintenance_date", "maintenance_title", "maintenance_report_link", "maintenance_st_link",
}

const (
	colCategory = iota
	colName
	colManufacturer
	colScheme
	colSecurityLevel
	colProfiles
	colNotValidBefore
	colNotValidAfter
	colReportLink
	colTargetLink
	colMaintenanceDate
	colMaintenanceTitle
	colMaintenanceReport
	colMaintenanceTarget
)

// CSVParser reads the Common Criteria portal product CSV (windows-1252).
type CSVParser struct{}

// NewCSVParser creates a CSV parser.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// ParseFile parses one CSV listing. Every record gets the given status.
func (p *CSVParser) ParseFile(path string, status domain.Status) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	res, err := p.Parse(f, status)
	if err != nil {
		return nil, &domain.SourceFormatError{File: path, Err: err}
	}
	logSummary(res, "CSV", path)
	return res, nil
}

// Parse reads a CSV stream.
func (p *CSVParser) Parse(r io.Reader, status domain.Status) (*Result, error) {
	reader := csv.NewReader(charmap.Windows1252.NewDecoder().Reader(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < colTargetLink+1 {
		return nil, fmt.Errorf("expected at least %d columns, header has %d", colTargetLink+1, len(header))
	}
	expected := len(header)

	res := newResult()
	var maintenance [][]string
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			log.Printf("[CSV] Unreadable row %d: %v", line, err)
			skip(res, domain.SourceCSV, SkipColumns)
			continue
		}
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		row = fixSplitName(row, expected)
		if len(row) != expected {
			log.Printf("[CSV] Row %d has %d columns, expected %d", line, len(row), expected)
			skip(res, domain.SourceCSV, SkipColumns)
			continue
		}
		row = pad(row, len(csvColumns))

		if cleanText(row[colMaintenanceTitle]) != "" {
			maintenance = append(maintenance, row)
			continue
		}

		cert, ok := p.baseRecord(row, status, res)
		if !ok {
			continue
		}
		add(res, domain.SourceCSV, cert)
	}

	for _, row := range maintenance {
		p.attachMaintenance(row, res)
	}
	return res, nil
}

// fixSplitName repairs rows whose product name contained an unquoted comma.
func fixSplitName(row []string, expected int) []string {
	if len(row) != expected+1 || len(row) <= colSecurityLevel+1 {
		return row
	}
	if strings.Contains(row[colSecurityLevel+1], "EAL") && !strings.Contains(row[colSecurityLevel], "EAL") {
		fixed := make([]string, 0, expected)
		fixed = append(fixed, row[colCategory], row[colName]+","+row[colName+1])
		fixed = append(fixed, row[colName+2:]...)
		return fixed
	}
	return row
}

func pad(row []string, n int) []string {
	for len(row) < n {
		row = append(row, "")
	}
	return row
}

func (p *CSVParser) baseRecord(row []string, status domain.Status, res *Result) (domain.Certificate, bool) {
	category := cleanText(row[colCategory])
	name := cleanText(row[colName])
	if name == "" {
		skip(res, domain.SourceCSV, SkipMissingName)
		return domain.Certificate{}, false
	}
	reportLink := identity.ResolveLink(row[colReportLink])

	notBefore, ok1 := parseDate(row[colNotValidBefore])
	notAfter, ok2 := parseDate(row[colNotValidAfter])
	if !ok1 || !ok2 {
		log.Printf("[CSV] Unparseable date for %q, leaving it empty", name)
	}

	manufacturer := cleanText(row[colManufacturer])
	cert := domain.Certificate{
		Digest:         identity.Digest(identity.CCPrimaryKey(category, name, reportLink)...),
		Kind:           domain.KindCommonCriteria,
		Status:         status,
		Category:       category,
		Name:           name,
		Manufacturer:   manufacturer,
		Vendors:        splitVendors(manufacturer),
		Scheme:         cleanText(row[colScheme]),
		SecurityLevel:  splitList(row[colSecurityLevel], ","),
		NotValidBefore: notBefore,
		NotValidAfter:  notAfter,
		ReportLink:     reportLink,
		TargetLink:     identity.ResolveLink(row[colTargetLink]),
		State:          domain.NewState(),
	}
	for _, pp := range splitList(row[colProfiles], ",;") {
		cert.ProtectionProfiles = append(cert.ProtectionProfiles, domain.ProtectionProfile{Name: pp})
	}
	return cert, true
}

// attachMaintenance adds a maintenance row to the base record sharing its key.
func (p *CSVParser) attachMaintenance(row []string, res *Result) {
	dgst := identity.Digest(identity.CCPrimaryKey(
		cleanText(row[colCategory]), cleanText(row[colName]), identity.ResolveLink(row[colReportLink]))...)
	cert, ok := res.Certificates[dgst]
	if !ok {
		skip(res, domain.SourceCSV, SkipOrphan)
		return
	}

	date, ok := parseDate(row[colMaintenanceDate])
	if !ok {
		log.Printf("[CSV] Unparseable maintenance date %q", row[colMaintenanceDate])
	}
	update := domain.MaintenanceUpdate{
		Date:       date,
		Title:      cleanText(row[colMaintenanceTitle]),
		ReportLink: identity.ResolveLink(row[colMaintenanceReport]),
		TargetLink: identity.ResolveLink(row[colMaintenanceTarget]),
	}
	for _, m := range cert.Maintenance {
		if m.Key() == update.Key() {
			return
		}
	}
	cert.Maintenance = append(cert.Maintenance, update)
	res.Certificates[dgst] = cert
}
