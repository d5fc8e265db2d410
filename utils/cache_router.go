package utils

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	CacheNoCache = 0
	CacheCustom  = -1
)

type CacheRouter struct {
	CacheTime int // seconds, defaults to CacheNoCache = 0
}

// CacheFor builds a router caching privately for d (rounded down to seconds)
func CacheFor(d time.Duration) *CacheRouter {
	seconds := int(d / time.Second)
	if seconds <= 0 {
		return &CacheRouter{CacheTime: CacheNoCache}
	}
	return &CacheRouter{CacheTime: seconds}
}

func (cr *CacheRouter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		cr.setHeader(c)
		c.Next()
	}
}

func (cr *CacheRouter) setHeader(c *gin.Context) {
	switch cr.CacheTime {
	case CacheCustom:
		// the handler decides
	case CacheNoCache:
		c.Header("Cache-Control", "no-cache")
	default:
		c.Header("Cache-Control", "private, max-age="+strconv.Itoa(cr.CacheTime))
	}
}
