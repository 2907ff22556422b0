package sources

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
)

func TestAlgorithmParser_Parse(t *testing.T) {
	input := "number,vendor,implementation,type,date\n" +
		"AES 0042,Acme Inc.,Acme Lib,AES,2015-03-01\n" +
		"1234, Other  Corp ,Lib,SHS,\n" +
		"x,bad,,,\n" +
		"42,Duplicate,,,\n"

	list, err := NewAlgorithmParser().Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Len(t, list.Algorithms, 3)
	assert.Equal(t, 1, list.Skipped)
	assert.Equal(t, domain.AlgorithmIndex{"42": "Acme Inc.", "1234": "Other Corp"}, list.Index)

	first := list.Algorithms[0]
	assert.Equal(t, "42", first.Number)
	assert.Equal(t, "Acme Lib", first.Implementation)
	assert.Equal(t, time.Date(2015, 3, 1, 0, 0, 0, 0, time.UTC), first.Date)

	vendor, ok := list.Index.Vendor("1234")
	assert.True(t, ok)
	assert.Equal(t, "Other Corp", vendor)
}

func TestAlgorithmParser_EmptyInput(t *testing.T) {
	_, err := NewAlgorithmParser().Parse(strings.NewReader(""))
	assert.Error(t, err)
}
