package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamingMapIsBijective(t *testing.T) {
	require.Len(t, All, 32)
	require.Len(t, camelByName, len(All))

	seen := make(map[string]Name, len(All))

	for _, name := range All {
		camel := Camel(name)
		require.NotEmpty(t, camel, "feature %q has no camelCase form", name)

		prev, dup := seen[camel]
		require.False(t, dup, "camel form %q maps to both %q and %q", camel, prev, name)
		seen[camel] = name

		back, ok := FromCamel(camel)
		require.True(t, ok)
		assert.Equal(t, name, back)
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("noise_level"))
	assert.True(t, IsValid("romantic"))
	assert.False(t, IsValid("noiseLevel"))
	assert.False(t, IsValid("michelin_stars"))
	assert.False(t, IsValid(""))
}

func TestEveryFeatureHasGuidance(t *testing.T) {
	for _, name := range All {
		assert.NotEmpty(t, Guidance[name], "feature %q has no prompt guidance", name)
	}
}
