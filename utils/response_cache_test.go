package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheKey(t *testing.T) {
	k := CacheKey("/ows?request=Execute&input=a.asc")
	assert.Len(t, k, 32)
	assert.Equal(t, k, CacheKey("/ows?request=Execute&input=a.asc"))
	assert.NotEqual(t, k, CacheKey("/ows?request=Execute&input=b.asc"))
}

func TestNilResponseCache(t *testing.T) {
	c := NewResponseCache("")
	assert.Nil(t, c)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.NoError(t, c.Set("k", &CachedResponse{Body: []byte("x")}))
}

func TestResponseCacheUnreachable(t *testing.T) {
	c := NewResponseCache("127.0.0.1:1")
	_, ok := c.Get(CacheKey("/ows"))
	assert.False(t, ok)
	assert.Error(t, c.Set(CacheKey("/ows"), &CachedResponse{Body: []byte("x")}))
}
