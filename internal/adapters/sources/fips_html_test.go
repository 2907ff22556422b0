package sources

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/lcalzada-xor/certmap/internal/core/services/identity"
)

func fipsPage(rows ...string) string {
	return `<html><body><table id="searchResultsTable"><thead><tr>` +
		`<th>Certificate Number</th><th>Vendor Name</th><th>Module Name</th><th>Module Type</th><th>Validation Date</th>` +
		`</tr></thead><tbody>` + strings.Join(rows, "") + `</tbody></table></body></html>`
}

func TestFIPSHTMLParser_Parse(t *testing.T) {
	page := fipsPage(
		`<tr><td><a href="/projects/cryptographic-module-validation-program/certificate/3000">3000</a></td>`+
			`<td>Acme Inc.</td><td>Acme Crypto Module</td><td>Software</td><td>01/15/2018;<br>02/20/2020</td></tr>`,
		`<tr><td>n/a</td><td>Nobody</td><td>Module</td><td>Hardware</td><td>01/15/2018</td></tr>`,
		`<tr><td>12</td><td>Too</td><td>Few</td></tr>`,
	)

	res, err := NewFIPSHTMLParser().Parse(strings.NewReader(page), domain.StatusHistorical)
	require.NoError(t, err)

	require.Len(t, res.Certificates, 1)
	assert.Equal(t, 1, res.Skipped[SkipBadNumber])
	assert.Equal(t, 1, res.Skipped[SkipColumns])

	cert, ok := res.Certificates[identity.Digest("3000")]
	require.True(t, ok)
	assert.Equal(t, domain.KindFIPS, cert.Kind)
	assert.Equal(t, domain.StatusHistorical, cert.Status)
	assert.Equal(t, "3000", cert.CertNumber)
	assert.Equal(t, "Acme Crypto Module", cert.Name)
	assert.Equal(t, "Software", cert.Category)
	assert.Equal(t, []string{"Acme Inc."}, cert.Vendors)
	assert.Equal(t, "https://csrc.nist.gov/projects/cryptographic-module-validation-program/certificate/3000", cert.ReportLink)
	assert.Equal(t, "https://csrc.nist.gov/CSRC/media/projects/cryptographic-module-validation-program/documents/security-policies/140sp3000.pdf", cert.TargetLink)
	assert.Equal(t, time.Date(2018, 1, 15, 0, 0, 0, 0, time.UTC), cert.NotValidBefore)
	assert.Equal(t, time.Date(2020, 2, 20, 0, 0, 0, 0, time.UTC), cert.NotValidAfter)
}

func TestFIPSHTMLParser_DuplicateNumbers(t *testing.T) {
	row := `<tr><td>42</td><td>Acme</td><td>M</td><td>Software</td><td></td></tr>`

	res, err := NewFIPSHTMLParser().Parse(strings.NewReader(fipsPage(row, row)), domain.StatusActive)
	require.NoError(t, err)
	assert.Len(t, res.Certificates, 1)
	assert.Equal(t, 1, res.Duplicates)
}

func TestFIPSHTMLParser_DuplicateTableIsFatal(t *testing.T) {
	table := `<table id="searchResultsTable"><tr><th>n</th></tr></table>`
	page := "<html><body>" + table + table + "</body></html>"

	_, err := NewFIPSHTMLParser().Parse(strings.NewReader(page), domain.StatusActive)
	assert.ErrorIs(t, err, domain.ErrDuplicateTable)
}
