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

package audit

import (
	"time"
)

// EventType represents the type of audit event.
type EventType string

const (
	// === Authentication events ===
	EventLoginSuccess EventType = "auth.login.success"
	EventLoginFailure EventType = "auth.login.failure"
	EventSetupSuccess EventType = "auth.setup.success"
	EventSetupReject  EventType = "auth.setup.rejected"

	// === Admission and authorization events ===
	EventRateLimited   EventType = "ratelimit.denied"
	EventTokenRejected EventType = "token.rejected"
	EventAccessDenied  EventType = "access.denied"
)

// Severity represents the severity level of an audit event
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event represents a single audit event
type Event struct {
	// ID is a unique identifier for this event
	ID string `json:"id"`

	// Type is the type of event
	Type EventType `json:"type"`

	// Severity indicates the importance of the event
	Severity Severity `json:"severity"`

	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// Actor is who triggered the event
	Actor Actor `json:"actor"`

	// Target is what was affected by the event
	Target Target `json:"target"`

	// Details contains event-specific information
	Details map[string]interface{} `json:"details,omitempty"`

	// RequestContext describes the HTTP request behind the event
	RequestContext *RequestContext `json:"requestContext,omitempty"`
}

// Actor represents who triggered an audit event
type Actor struct {
	// User is the (normalized) email the request acted as, if any
	User string `json:"user,omitempty"`

	// SourceIP is the client identity used for rate limiting
	SourceIP string `json:"sourceIP,omitempty"`

	// UserAgent from the request
	UserAgent string `json:"userAgent,omitempty"`
}

// Target represents what was affected by an audit event
type Target struct {
	// Kind is the affected resource, e.g. "AdminUser" or "RateLimitWindow"
	Kind string `json:"kind"`

	// Name identifies the resource within its kind
	Name string `json:"name,omitempty"`
}

// RequestContext contains correlation and context information
type RequestContext struct {
	Method string `json:"method,omitempty"`
	Path   string `json:"path,omitempty"`
}

// SeverityForEventType returns the default severity for an event type
func SeverityForEventType(eventType EventType) Severity {
	switch eventType {
	case EventSetupReject:
		return SeverityCritical
	case EventLoginFailure, EventRateLimited, EventTokenRejected, EventAccessDenied:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
