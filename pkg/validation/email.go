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


// Package validation normalises and checks visitor-submitted form input.
package validation

import (
	"errors"
	"regexp"
	"strings"
)

// MaxEmailLength is the longest address accepted (RFC 5321 path limit).
const MaxEmailLength = 254

// Validation errors. Their messages are returned to the visitor verbatim.
var (
	ErrEmailRequired = errors.New("Email is required")
	ErrEmailTooLong  = errors.New("Email address is too long")
	ErrEmailInvalid  = errors.New("Please enter a valid email address")
	ErrEmailFormat   = errors.New("Invalid email format")
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// NormalizeEmail trims surrounding whitespace and lowercases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Email normalises email and checks it, returning the normalised address.
func Email(email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", ErrEmailRequired
	}
	email = NormalizeEmail(email)
	if len(email) > MaxEmailLength {
		return "", ErrEmailTooLong
	}
	if !emailPattern.MatchString(email) {
		return "", ErrEmailInvalid
	}
	if strings.Contains(email, "..") || strings.HasPrefix(email, ".") || strings.HasSuffix(email, ".") {
		return "", ErrEmailFormat
	}
	return email, nil
}
