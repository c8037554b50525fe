package cache

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.LineString{{0, 0}, {1, 1}}))
	return fc
}

func TestGetAfterSet(t *testing.T) {
	c := New(time.Minute, 0)
	fc := collection()
	c.Set("k", fc)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Same(t, fc, got)
}

func TestExpiryEvictsAtRead(t *testing.T) {
	c := New(time.Minute, 0)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Set("k", collection())
	now = now.Add(2 * time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCapacityEvictsOldest(t *testing.T) {
	c := New(time.Hour, 2)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Set("a", collection())
	now = now.Add(time.Second)
	c.Set("b", collection())
	now = now.Add(time.Second)
	c.Set("c", collection())

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache
	c.Set("k", collection())
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}
