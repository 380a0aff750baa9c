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


package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/toftewellness/wellness-api/pkg/metrics"
)

// RoleAdmin is the only role allowed to read inquiries and subscribers.
const RoleAdmin = "admin"

const bearerPrefix = "Bearer "

// Claims is the claim set carried by an access token.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (a *Authenticator) issueToken(userID, email, role string) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.ttl)
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// BearerToken extracts the token from an Authorization header value.
// It returns ErrNoToken when the header is absent or not a bearer presentation.
func BearerToken(header string) (string, error) {
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", ErrNoToken
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Verify checks an Authorization header value and returns the token claims.
// Signature, algorithm and expiry failures are all reported as ErrInvalidToken;
// a valid token without the admin role yields ErrAccessDenied together with
// its claims, so callers can record who was refused.
func (a *Authenticator) Verify(authorization string) (*Claims, error) {
	claims, err := a.verify(authorization)
	metrics.TokenVerifications.WithLabelValues(verifyOutcome(err)).Inc()
	return claims, err
}

func verifyOutcome(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, ErrNoToken):
		return "no_token"
	case errors.Is(err, ErrAccessDenied):
		return "denied"
	default:
		return "invalid"
	}
}

func (a *Authenticator) verify(authorization string) (*Claims, error) {
	raw, err := BearerToken(authorization)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		// expiry is checked below against the injected clock
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || !token.Valid {
		a.log.Debugw("Token rejected", "error", err)
		return nil, ErrInvalidToken
	}
	if !claims.VerifyExpiresAt(a.now(), true) {
		return nil, ErrInvalidToken
	}
	if claims.Role != RoleAdmin {
		return claims, ErrAccessDenied
	}
	return claims, nil
}
