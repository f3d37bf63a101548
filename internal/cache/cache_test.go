package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPutGet(t *testing.T) {
	c := openTestCache(t)
	at := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, c.Put("XV", []byte(`[{"IniId":"1"}]`), at))

	e, err := c.Get("XV")
	require.NoError(t, err)
	assert.Equal(t, `[{"IniId":"1"}]`, string(e.Data))
	assert.True(t, at.Equal(e.FetchedAt))
	assert.True(t, at.Equal(c.FetchedAt("XV")))
}

func TestGetMiss(t *testing.T) {
	c := openTestCache(t)

	_, err := c.Get("XIV")
	assert.True(t, errors.Is(err, ErrMiss))
	assert.True(t, c.FetchedAt("XIV").IsZero())
}

func TestCompositionKeyIsSeparate(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.Put("XV", []byte("initiatives"), time.Unix(1, 0)))
	require.NoError(t, c.Put(CompositionKey("XV"), []byte("organization"), time.Unix(2, 0)))

	e, err := c.Get("XV")
	require.NoError(t, err)
	assert.Equal(t, "initiatives", string(e.Data))

	e, err = c.Get(CompositionKey("XV"))
	require.NoError(t, err)
	assert.Equal(t, "organization", string(e.Data))

	_, err = c.Get(CompositionKey("XIV"))
	assert.ErrorIs(t, err, ErrMiss)
}

func TestPutReplaces(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.Put("XV", []byte("old"), time.Unix(1, 0)))
	require.NoError(t, c.Put("XV", []byte("new"), time.Unix(2, 0)))

	e, err := c.Get("XV")
	require.NoError(t, err)
	assert.Equal(t, "new", string(e.Data))
	assert.Equal(t, int64(2), e.FetchedAt.Unix())
}

func TestDelete(t *testing.T) {
	c := openTestCache(t)
	require.NoError(t, c.Put("XV", []byte("x"), time.Now()))
	require.NoError(t, c.Delete("XV"))

	_, err := c.Get("XV")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir()

	c, err := Open(dir, false)
	require.NoError(t, err)
	require.NoError(t, c.Put("XVI", []byte("dump"), time.Unix(100, 0)))
	c.Compact()
	require.NoError(t, c.Close())

	c, err = Open(dir, false)
	require.NoError(t, err)
	defer c.Close()

	e, err := c.Get("XVI")
	require.NoError(t, err)
	assert.Equal(t, "dump", string(e.Data))
}

func TestOpenReadOnly(t *testing.T) {
	dir := t.TempDir()

	c, err := Open(dir, false)
	require.NoError(t, err)
	require.NoError(t, c.Put("XV", []byte("dump"), time.Unix(5, 0)))
	require.NoError(t, c.Close())

	ro, err := OpenReadOnly(dir)
	require.NoError(t, err)
	defer ro.Close()

	e, err := ro.Get("XV")
	require.NoError(t, err)
	assert.Equal(t, "dump", string(e.Data))
}
