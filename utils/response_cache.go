package utils

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"

	"github.com/nci/gomemcache/memcache"
)

// CachedResponse is an encoded response kept in memcache.
type CachedResponse struct {
	ContentType string `json:"content_type"`
	Warning     string `json:"warning,omitempty"`
	Body        []byte `json:"body"`
}

// ResponseCache stores rendered responses keyed by request URI. A nil
// *ResponseCache is valid and caches nothing.
type ResponseCache struct {
	mc *memcache.Client
}

func NewResponseCache(addr string) *ResponseCache {
	if addr == "" {
		return nil
	}
	// lazy connection; errors returned in .Get
	return &ResponseCache{mc: memcache.New(addr)}
}

func CacheKey(requestURI string) string {
	buff := md5.Sum([]byte(requestURI))
	return hex.EncodeToString(buff[:])
}

func (c *ResponseCache) Get(key string) (*CachedResponse, bool) {
	if c == nil {
		return nil, false
	}
	item, err := c.mc.Get(key)
	if err != nil {
		return nil, false
	}
	var resp CachedResponse
	if err := json.Unmarshal(item.Value, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

// Set stores resp. Failures are returned for logging only.
func (c *ResponseCache) Set(key string, resp *CachedResponse) error {
	if c == nil {
		return nil
	}
	value, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return c.mc.Set(&memcache.Item{Key: key, Value: value})
}
