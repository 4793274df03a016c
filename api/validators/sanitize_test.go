package validators

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/walletcore/pkg/errors"
)

func TestReferenceKeepsMultibyteReferencesWhole(t *testing.T) {
	// 100 characters, 200 bytes
	ref := strings.Repeat("é", 100)
	got, err := Reference("  "+ref+"  ", "reference")
	require.NoError(t, err)
	assert.Equal(t, ref, got)

	other := strings.Repeat("é", 99) + "a"
	gotOther, err := Reference(other, "reference")
	require.NoError(t, err)
	assert.NotEqual(t, got, gotOther)
}

func TestReferenceRejectsOverlongInput(t *testing.T) {
	_, err := Reference(strings.Repeat("x", MaxReferenceLength+1), "gateway_reference")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = Reference(strings.Repeat("x", MaxReferenceLength), "gateway_reference")
	assert.NoError(t, err)

	_, err = Reference("ref-\xff", "reference")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestTextCutsOnCharacterBoundary(t *testing.T) {
	title := strings.Repeat("₦", 10)
	got := Text(title, 4)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "₦₦₦₦", got)

	assert.Equal(t, "Lagos bike", Text("  Lagos bike  ", 200))
	assert.Equal(t, "ab", Text("ab c", 3))
}
