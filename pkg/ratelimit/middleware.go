/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/


package ratelimit

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// IdentityKey is the gin context key holding the identity derived by Middleware.
const IdentityKey = "clientIdentity"

// DenyFunc is invoked for every denied request, after the 429 has been written.
type DenyFunc func(c *gin.Context, category Category, identity string)

// Identity returns the identity stored by Middleware, deriving it when absent.
func Identity(c *gin.Context) string {
	if v, ok := c.Get(IdentityKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ClientIdentity(c.Request)
}

// Middleware gates a route on the category's window. Denied requests get
// 429 with the given message in the standard error envelope.
func (l *Limiter) Middleware(category Category, message string, onDeny ...DenyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := ClientIdentity(c.Request)
		c.Set(IdentityKey, identity)
		if identity == UnknownIdentity {
			l.log.Debugw("No client address on request, using shared bucket", "category", category, "path", c.FullPath())
		}

		if !l.Admit(category, identity) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   message,
			})
			for _, fn := range onDeny {
				fn(c, category, identity)
			}
			return
		}
		c.Next()
	}
}
