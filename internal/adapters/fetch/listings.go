package fetch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"

	"github.com/lcalzada-xor/certmap/internal/core/ports"
)

// Format selects the parser for a listing file.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatHTML     Format = "html"
	FormatFIPSHTML Format = "fips_html"
)

const (
	ccPortal = "https://www.commoncriteriaportal.org"
	fipsCMVP = "https://csrc.nist.gov/projects/cryptographic-module-validation-program"
)

// Listing is one published certification listing. The file name encodes its status.
type Listing struct {
	File   string
	URL    string
	Format Format
}

// DefaultListings are the public listings of both certification programs.
var DefaultListings = []Listing{
	{File: "cc_products_active.csv", URL: ccPortal + "/products/certified_products.csv", Format: FormatCSV},
	{File: "cc_products_archived.csv", URL: ccPortal + "/products/certified_products-archived.csv", Format: FormatCSV},
	{File: "cc_products_active.html", URL: ccPortal + "/products/", Format: FormatHTML},
	{File: "cc_products_archived.html", URL: ccPortal + "/products/index.cfm?archived=1", Format: FormatHTML},
	{File: "fips_modules_active.html", URL: fipsCMVP + "/validated-modules/search?SearchMode=Advanced&CertificateStatus=Active&ValidationYear=0", Format: FormatFIPSHTML},
	{File: "fips_modules_historical.html", URL: fipsCMVP + "/validated-modules/search?SearchMode=Advanced&CertificateStatus=Historical&ValidationYear=0", Format: FormatFIPSHTML},
	{File: "fips_modules_revoked.html", URL: fipsCMVP + "/validated-modules/search?SearchMode=Advanced&CertificateStatus=Revoked&ValidationYear=0", Format: FormatFIPSHTML},
}

// FormatOf returns the format of a known listing file name.
func FormatOf(name string) (Format, bool) {
	for _, l := range DefaultListings {
		if l.File == name {
			return l.Format, true
		}
	}
	return "", false
}

// FetchListings downloads every listing into dir and returns the files written.
// A failed listing is logged and reported in the joined error; the others are still fetched.
func FetchListings(ctx context.Context, d ports.Downloader, dir string, listings []Listing) ([]string, error) {
	var written []string
	var errs []error
	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		dest := filepath.Join(dir, l.File)
		status, err := d.Download(ctx, l.URL, dest)
		if err == nil && status != http.StatusOK {
			err = fmt.Errorf("unexpected status %d", status)
		}
		if err != nil {
			log.Printf("[FETCH] Failed to fetch %s: %v", l.File, err)
			errs = append(errs, fmt.Errorf("%s: %w", l.File, err))
			continue
		}
		log.Printf("[FETCH] Saved %s", dest)
		written = append(written, dest)
	}
	return written, errors.Join(errs...)
}
