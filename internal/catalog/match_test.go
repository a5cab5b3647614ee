package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchVariantExactWinsOverSubstring(t *testing.T) {
	vs := []Variant{
		{ID: "v1", Color: "Red"},
		{ID: "v2", Color: "Dark Red"},
	}
	got, err := MatchVariant(vs, "Red")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.ID)
}

func TestMatchVariantCaseInsensitive(t *testing.T) {
	vs := []Variant{{ID: "v1", Color: "Navy Blue"}}
	got, err := MatchVariant(vs, "navy blue")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.ID)
}

func TestMatchVariantSubstringFallback(t *testing.T) {
	vs := []Variant{
		{ID: "v1", Color: "Jet Black"},
		{ID: "v2", Color: "Ivory White"},
	}
	got, err := MatchVariant(vs, "black")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.ID)
}

func TestMatchVariantAmbiguousSubstring(t *testing.T) {
	vs := []Variant{
		{ID: "v1", Color: "Light Blue"},
		{ID: "v2", Color: "Dark Blue"},
	}
	_, err := MatchVariant(vs, "blue")
	assert.ErrorIs(t, err, ErrVariantAmbiguous)
}

func TestMatchVariantNotFound(t *testing.T) {
	vs := []Variant{{ID: "v1", Color: "Green"}}
	_, err := MatchVariant(vs, "purple")
	assert.ErrorIs(t, err, ErrVariantNotFound)
}
