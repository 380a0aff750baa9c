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


package apiresponses

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Generic bodies for failures whose cause must not reach the client.
const (
	MsgServerError         = "Server error"
	MsgServerErrorOccurred = "Server error occurred"
	MsgMethodNotAllowed    = "Method not allowed"
	MsgNotFound            = "Not found"
)

// APIError is the failure envelope.
type APIError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, APIError{Success: false, Error: message})
}

// RespondBadRequest sends a 400 with the given validation message.
func RespondBadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, message)
}

// RespondUnauthorized sends a 401.
func RespondUnauthorized(c *gin.Context, message string) {
	respondError(c, http.StatusUnauthorized, message)
}

// RespondForbidden sends a 403.
func RespondForbidden(c *gin.Context, message string) {
	respondError(c, http.StatusForbidden, message)
}

// RespondNotFound sends a 404 with a fixed body.
func RespondNotFound(c *gin.Context) {
	respondError(c, http.StatusNotFound, MsgNotFound)
}

// RespondMethodNotAllowed sends a 405 with a fixed body.
func RespondMethodNotAllowed(c *gin.Context) {
	respondError(c, http.StatusMethodNotAllowed, MsgMethodNotAllowed)
}

// RespondTooManyRequests sends a 429.
func RespondTooManyRequests(c *gin.Context, message string) {
	respondError(c, http.StatusTooManyRequests, message)
}

// RespondServiceUnavailable sends a 503.
func RespondServiceUnavailable(c *gin.Context, message string) {
	respondError(c, http.StatusServiceUnavailable, message)
}

// RespondInternalError sends a 500 Internal Server Error response.
// It logs the error with full details but returns only message to the client.
func RespondInternalError(c *gin.Context, operation string, err error, message string, log *zap.SugaredLogger) {
	if log != nil {
		log.Errorw("Failed to "+operation, "error", err, "path", c.FullPath())
	}
	respondError(c, http.StatusInternalServerError, message)
}

// RespondOK sends a 200 with data merged into a success envelope.
func RespondOK(c *gin.Context, data gin.H) {
	body := gin.H{"success": true}
	for k, v := range data {
		if k == "success" {
			continue
		}
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}
