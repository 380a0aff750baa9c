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


package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/toftewellness/wellness-api/pkg/apiresponses"
	"github.com/toftewellness/wellness-api/pkg/auth"
	"github.com/toftewellness/wellness-api/pkg/ratelimit"
	"github.com/toftewellness/wellness-api/pkg/system"
)

const (
	AuthHeaderKey = "Authorization"

	msgTooManyLogins       = "Too many login attempts. Please try again in 15 minutes."
	msgCredentialsRequired = "Email and password are required"
	msgInvalidCredentials  = "Invalid credentials"
	msgInvalidSetupKey     = "Invalid setup key"
	msgSetupFieldsRequired = "All fields required"
	msgPasswordTooLong     = "Password must be at most 72 bytes"
	msgAdminExists         = "Admin user already exists"
	msgAdminCreated        = "Admin user created successfully"
	msgNoToken             = "No token provided"
	msgInvalidToken        = "Invalid token"
	msgAccessDenied        = "Access denied"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type setupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	SetupKey string `json:"setupKey"`
}

// AuthController serves /api/auth: login for every deployment, setup only
// when auth.setupEnabled is set.
type AuthController struct {
	s   *Server
	log *zap.SugaredLogger
}

func NewAuthController(s *Server) *AuthController {
	return &AuthController{s: s, log: s.log.Named("auth")}
}

func (ac *AuthController) BasePath() string { return "auth" }

func (ac *AuthController) Handlers() []gin.HandlerFunc { return nil }

func (ac *AuthController) Register(rg *gin.RouterGroup) error {
	rg.OPTIONS("/login", preflight)
	rg.POST("/login", ac.s.deps.Limiter.Middleware(ratelimit.CategoryLogin, msgTooManyLogins, ac.s.auditDenied), ac.login)

	if ac.s.config.Auth.SetupEnabled {
		rg.OPTIONS("/setup", preflight)
		rg.POST("/setup", ac.setup)
		ac.log.Warn("Admin setup endpoint is enabled; disable auth.setupEnabled once the first admin exists")
	}
	return nil
}

func (ac *AuthController) login(c *gin.Context) {
	log := system.GetReqLogger(c, ac.log)
	req := bindBody[loginRequest](c, log)
	ctx := c.Request.Context()
	actor := ac.s.actor(c, req.Email)

	res, err := ac.s.deps.Auth.Authenticate(ctx, req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		apiresponses.RespondBadRequest(c, msgCredentialsRequired)
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		ac.s.deps.Audit.LoginFailed(ctx, actor, requestContext(c), "invalid_credentials")
		apiresponses.RespondUnauthorized(c, msgInvalidCredentials)
		return
	case err != nil:
		apiresponses.RespondInternalError(c, "authenticate admin", err, apiresponses.MsgServerError, log)
		return
	}

	ac.s.deps.Audit.LoginSucceeded(ctx, actor, requestContext(c), res.UserID)
	log.Infow("Admin logged in", "adminId", res.UserID)
	apiresponses.RespondOK(c, gin.H{
		"token": res.Token,
		"user":  res.User,
	})
}

func (ac *AuthController) setup(c *gin.Context) {
	log := system.GetReqLogger(c, ac.log)
	req := bindBody[setupRequest](c, log)
	ctx := c.Request.Context()

	id, err := ac.s.deps.Auth.Provision(ctx, auth.ProvisionRequest{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		SetupKey: req.SetupKey,
	})
	switch {
	case errors.Is(err, auth.ErrSetupUnauthorized):
		ac.s.deps.Audit.SetupRejected(ctx, ac.s.actor(c, req.Email), requestContext(c), "invalid_setup_key")
		apiresponses.RespondForbidden(c, msgInvalidSetupKey)
		return
	case errors.Is(err, auth.ErrMissingFields):
		apiresponses.RespondBadRequest(c, msgSetupFieldsRequired)
		return
	case errors.Is(err, auth.ErrWeakPassword):
		apiresponses.RespondBadRequest(c, fmt.Sprintf("Password must be at least %d characters", ac.s.config.Auth.MinPasswordLength))
		return
	case errors.Is(err, auth.ErrPasswordTooLong):
		apiresponses.RespondBadRequest(c, msgPasswordTooLong)
		return
	case errors.Is(err, auth.ErrAlreadyProvisioned):
		ac.s.deps.Audit.SetupRejected(ctx, ac.s.actor(c, req.Email), requestContext(c), "already_provisioned")
		apiresponses.RespondBadRequest(c, msgAdminExists)
		return
	case err != nil:
		apiresponses.RespondInternalError(c, "provision admin", err, apiresponses.MsgServerError, log)
		return
	}

	ac.s.deps.Audit.SetupSucceeded(ctx, ac.s.actor(c, req.Email), requestContext(c), id)
	apiresponses.RespondOK(c, gin.H{
		"message": msgAdminCreated,
		"userId":  id,
	})
}

// RequireAdmin verifies the bearer token and the admin role. The
// Authorization header is removed from the request once read so it cannot
// end up in logs.
func (s *Server) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		header := c.GetHeader(AuthHeaderKey)
		c.Request.Header.Del(AuthHeaderKey)

		ctx := c.Request.Context()
		claims, err := s.deps.Auth.Verify(header)
		switch {
		case errors.Is(err, auth.ErrNoToken):
			s.deps.Audit.TokenRejected(ctx, s.actor(c, ""), requestContext(c), "no_token")
			apiresponses.RespondUnauthorized(c, msgNoToken)
			c.Abort()
			return
		case errors.Is(err, auth.ErrAccessDenied):
			s.deps.Audit.AccessDenied(ctx, s.actor(c, claims.Email), requestContext(c), claims.Role)
			apiresponses.RespondForbidden(c, msgAccessDenied)
			c.Abort()
			return
		case err != nil:
			s.deps.Audit.TokenRejected(ctx, s.actor(c, ""), requestContext(c), "invalid_token")
			apiresponses.RespondUnauthorized(c, msgInvalidToken)
			c.Abort()
			return
		}

		c.Set(system.AdminIDKey, claims.UserID)
		c.Set(system.AdminEmailKey, claims.Email)
		c.Set(system.AdminRoleKey, claims.Role)
		c.Next()
	}
}
