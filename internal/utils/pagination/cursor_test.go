package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 10, 12, 30, 0, 123000000, time.UTC)
	token, err := Encode(After("click-1", at))
	require.NoError(t, err)

	c, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "click-1", c.ID)
	assert.True(t, c.Time().Equal(at))
	assert.False(t, c.IsZero())
}

func TestDecodeEmptyAndGarbage(t *testing.T) {
	c, err := Decode("")
	require.NoError(t, err)
	assert.True(t, c.IsZero())

	_, err = Decode("%%%")
	assert.Error(t, err)

	_, err = Decode("bm90LWpzb24") // "not-json"
	assert.Error(t, err)
}
