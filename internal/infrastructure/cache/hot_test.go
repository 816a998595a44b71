package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHotCache_GetReturnsIsolatedCopy(t *testing.T) {
	hot := NewHotCache()
	defer hot.Stop()

	hot.Set("k", []byte(`{"grade":"8/10"}`))

	first := hot.Get("k")
	require.NotNil(t, first)
	first[0] = 'X'

	second := hot.Get("k")
	require.NotNil(t, second)
	assert.Equal(t, []byte(`{"grade":"8/10"}`), second,
		"mutating a returned payload must not corrupt the cached entry")
}

func TestHotCache_SetCopiesInput(t *testing.T) {
	hot := NewHotCache()
	defer hot.Stop()

	payload := []byte(`{"grade":"8/10"}`)
	hot.Set("k", payload)
	payload[0] = 'X'

	assert.Equal(t, []byte(`{"grade":"8/10"}`), hot.Get("k"))
}
