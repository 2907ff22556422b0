package keywords

import (
	"testing"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog_Compiles(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	assert.Greater(t, c.RuleCount(), 50)
	_, ok := c.Group(GroupCertID)
	assert.True(t, ok)
	_, ok = c.Group(GroupVendor)
	assert.True(t, ok)
	assert.Equal(t, []string{"ANSSI", "BSI"}, c.Schemes())
}

func TestCatalog_Variants(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	assert.Equal(t, []string{"english", "german"}, c.Variants("BSI"))
	assert.Equal(t, []string{
		"full", "full_mojibake",
		"english",
		"missing_cert_item_version", "missing_cert_item_version_mojibake",
		"missing_protection_profiles", "missing_protection_profiles_mojibake",
		"duplicities",
	}, c.Variants("ANSSI"))
	assert.Empty(t, c.Variants("NIAP"))
}

func TestParseCatalog_MalformedPattern(t *testing.T) {
	_, err := ParseCatalog([]byte(`
groups:
  - name: rules_broken
    rules:
      - {name: open, pattern: 'AES-(128'}
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidRule)

	var ruleErr *domain.RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "rules_broken", ruleErr.Group)
	assert.Equal(t, "open", ruleErr.Rule)
}

func TestParseCatalog_HeaderValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"field count mismatch", `
headers:
  - {scheme: X, variant: a, pattern: '(a)(b)', fields: [cert_id]}
`},
		{"unknown field", `
headers:
  - {scheme: X, variant: a, pattern: '(a)', fields: [colour]}
`},
		{"sections without terminators", `
headers:
  - scheme: X
    variant: a
    sections:
      - {field: cert_id, labels: [Ref]}
`},
		{"unknown encoding", `
headers:
  - scheme: X
    variant: a
    encodings: [latin9]
    sections:
      - {field: cert_id, labels: [Ref]}
    terminators: [End]
`},
		{"duplicate group", `
groups:
  - {name: g, rules: [{pattern: a}]}
  - {name: g, rules: [{pattern: b}]}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			assert.ErrorIs(t, err, domain.ErrInvalidRule)
		})
	}
}

func TestMojibake(t *testing.T) {
	assert.Equal(t, "RÃ©fÃ©rence", Mojibake("Référence"))
	assert.Equal(t, "dâ€™Ã©valuation", Mojibake("d’évaluation"))
	assert.Equal(t, "plain", Mojibake("plain"))
}

func TestLoadCatalog_EmptyPathUsesDefault(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, 3, c.Version)

	_, err = LoadCatalog("/nonexistent/rules.yaml")
	assert.Error(t, err)
}
