package keywords

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const aesCatalog = `
groups:
  - name: rules_symmetric_crypto
    rules:
      - {name: aes, pattern: 'AES-\d+'}
  - name: rules_long
    rules:
      - {name: x, pattern: 'X+'}
`

func newTestExtractor(t *testing.T, yaml string, opts Options) *Extractor {
	t.Helper()
	c, err := ParseCatalog([]byte(yaml))
	require.NoError(t, err)
	return NewExtractor(c, opts)
}

func defaultExtractor(t *testing.T) *Extractor {
	t.Helper()
	c, err := DefaultCatalog()
	require.NoError(t, err)
	return NewExtractor(c, Options{})
}

func TestExtract_AggregatesMatches(t *testing.T) {
	e := newTestExtractor(t, aesCatalog, Options{})

	got := e.Extract("AES-128 uses AES-128 and AES-256")

	assert.Equal(t, map[string]int{"AES-128": 2, "AES-256": 1}, got.Matches("rules_symmetric_crypto"))
	assert.Empty(t, got.Matches("rules_long"))
	assert.Nil(t, got["rules_symmetric_crypto"]["aes"]["AES-128"].Positions, "positions are off by default")
}

func TestExtract_MatchAcrossLineEnd(t *testing.T) {
	e := newTestExtractor(t, aesCatalog, Options{})

	got := e.Extract("first AES-128\r\nthen AES-192.\nAES-256")

	assert.Equal(t, map[string]int{"AES-128": 1, "AES-256": 1}, got.Matches("rules_symmetric_crypto"),
		"a trailing dot is not a separator")
}

func TestExtract_Positions(t *testing.T) {
	e := newTestExtractor(t, aesCatalog, Options{CapturePositions: true})

	got := e.Extract("AES-128 uses AES-128")

	entry := got["rules_symmetric_crypto"]["aes"]["AES-128"]
	assert.Equal(t, 2, entry.Count)
	assert.Equal(t, []domain.Span{{Start: 0, End: 8}, {Start: 13, End: 21}}, entry.Positions)
}

func TestExtract_DropsOverlongMatches(t *testing.T) {
	e := newTestExtractor(t, aesCatalog, Options{})

	got := e.Extract(strings.Repeat("X", MaxMatchLength+1) + " and XXX")

	assert.Equal(t, map[string]int{"XXX": 1}, got.Matches("rules_long"))
}

func TestExtract_EmptyTextStillRecordsRun(t *testing.T) {
	e := newTestExtractor(t, aesCatalog, Options{})

	got := e.Extract("")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestExtract_Deterministic(t *testing.T) {
	e := defaultExtractor(t)
	text := "The TOE BSI-DSZ-CC-0754-2012 by Infineon Technologies AG uses AES-256, RSA-2048 and SHA-256 (FIPS 180-4).\n" +
		"It claims EAL 5+ with ALC_DVS.2 and AVA_VAN.5; see also NSCIB-CC-12345-CR.\n"

	first := e.Extract(text)
	second := e.Extract(text)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, first.Matches(GroupCertID)["BSI-DSZ-CC-0754-2012"])
	assert.Equal(t, 1, first.Matches(GroupVendor)["Infineon Technologies AG"])
	assert.Equal(t, 1, first.Matches("rules_security_assurance_components")["AVA_VAN.5"])
	assert.Equal(t, 1, first.Matches("rules_hashes")["SHA-256"])
}

func TestExtract_LineSeparatorOption(t *testing.T) {
	e := newTestExtractor(t, `
groups:
  - name: g
    rules:
      - {name: phrase, pattern: 'side channel'}
`, Options{LineSeparator: " "})

	got := e.Extract("resistant to side\nchannel attacks")
	assert.Equal(t, map[string]int{"side channel": 1}, got.Matches("g"))
}

func TestEstimateCertID(t *testing.T) {
	e := defaultExtractor(t)
	matches := domain.KeywordMatches{}
	matches.Add(GroupCertID, "bsi", "BSI-DSZ-CC-0002-2020", nil)
	matches.Add(GroupCertID, "bsi", "BSI-DSZ-CC-0002-2020", nil)
	matches.Add(GroupCertID, "bsi", "BSI-DSZ-CC-0001-2020", nil)
	matches.Add(GroupCertID, "bsi", "BSI-DSZ-CC-0001-2020", nil)
	matches.Add(GroupCertID, "bsi", "BSI-DSZ-CC-0003-2020", nil)

	fp := &domain.FrontPage{CertID: "ANSSI-CC-2014/01"}
	assert.Equal(t, "ANSSI-CC-2014/01", e.EstimateCertID(fp, "BSI-DSZ-CC-0754-2012.pdf", matches))
	assert.Equal(t, "BSI-DSZ-CC-0754-2012", e.EstimateCertID(nil, "files/BSI-DSZ-CC-0754-2012.pdf", matches))
	assert.Equal(t, "BSI-DSZ-CC-0001-2020", e.EstimateCertID(&domain.FrontPage{}, "report.pdf", matches), "ties break lexicographically")
	assert.Equal(t, "", e.EstimateCertID(nil, "", domain.KeywordMatches{}))
}

func TestReadText(t *testing.T) {
	dir := t.TempDir()

	clean := filepath.Join(dir, "clean.txt")
	require.NoError(t, os.WriteFile(clean, []byte("AES-128 here\n"), 0o644))
	text, tolerant, err := ReadText(clean)
	require.NoError(t, err)
	assert.False(t, tolerant)
	assert.Equal(t, "AES-128 here\n", text)

	mixed := filepath.Join(dir, "mixed.txt")
	require.NoError(t, os.WriteFile(mixed, []byte("good line\n\xff\xfe bad\nAES-128 ok\n"), 0o644))
	text, tolerant, err = ReadText(mixed)
	require.NoError(t, err)
	assert.True(t, tolerant)
	assert.Equal(t, "good line\nAES-128 ok\n", text)

	broken := filepath.Join(dir, "broken.txt")
	require.NoError(t, os.WriteFile(broken, []byte("\xff\n\xfe\xfd\n\n"), 0o644))
	_, _, err = ReadText(broken)
	assert.ErrorIs(t, err, domain.ErrUnreadableText)

	_, _, err = ReadText(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}
