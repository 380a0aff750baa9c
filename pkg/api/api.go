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
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/toftewellness/wellness-api/pkg/apiresponses"
	"github.com/toftewellness/wellness-api/pkg/audit"
	"github.com/toftewellness/wellness-api/pkg/auth"
	"github.com/toftewellness/wellness-api/pkg/config"
	"github.com/toftewellness/wellness-api/pkg/mail"
	"github.com/toftewellness/wellness-api/pkg/metrics"
	"github.com/toftewellness/wellness-api/pkg/ratelimit"
	"github.com/toftewellness/wellness-api/pkg/store"
	"github.com/toftewellness/wellness-api/pkg/system"
	"github.com/toftewellness/wellness-api/pkg/telemetry"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

type APIController interface {
	BasePath() string
	Register(rg *gin.RouterGroup) error
	Handlers() []gin.HandlerFunc
}

// Dependencies are the collaborators shared by the controllers.
// Audit and Notifier may be nil.
type Dependencies struct {
	Store        store.Store
	Auth         *auth.Authenticator
	Limiter      *ratelimit.Limiter
	AdminLimiter *ratelimit.IPRateLimiter
	Audit        *audit.Manager
	Notifier     *mail.Notifier
	// Now replaces time.Now for timestamps and stats windows.
	Now func() time.Time
}

type Server struct {
	gin    *gin.Engine
	http   *http.Server
	config config.Config
	deps   Dependencies
	log    *zap.SugaredLogger
}

func NewServer(log *zap.Logger, cfg config.Config, debug bool, deps Dependencies) (*Server, error) {
	if deps.Store == nil || deps.Auth == nil || deps.Limiter == nil {
		return nil, errors.New("api: store, authenticator and limiter are required")
	}
	if deps.AdminLimiter == nil {
		deps.AdminLimiter = ratelimit.New(ratelimit.DefaultAdminConfig())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	if err := engine.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
		system.RequestLogger(log.Sugar()),
		cors.New(cors.Config{
			AllowOrigins:              []string{cfg.Server.AllowedOrigin},
			AllowMethods:              []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:              []string{"Content-Type", "Authorization"},
			AllowCredentials:          true,
			MaxAge:                    12 * time.Hour,
			OptionsResponseStatusCode: http.StatusOK,
		}),
	)
	engine.NoRoute(apiresponses.RespondNotFound)
	engine.NoMethod(apiresponses.RespondMethodNotAllowed)

	s := &Server{
		gin:    engine,
		config: cfg,
		deps:   deps,
		log:    log.Sugar().Named("api"),
	}
	s.http = &http.Server{
		Addr:              cfg.Server.ListenAddress,
		Handler:           telemetry.WrapHandler(engine, cfg.Telemetry.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	engine.GET("/healthz", s.healthz)
	engine.GET("/readyz", s.readyz)
	engine.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	if err := s.RegisterAll([]APIController{
		NewAuthController(s),
		NewSubmissionController(s),
		NewAdminController(s),
	}); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) RegisterAll(controllers []APIController) error {
	r := s.gin.Group("api")
	for _, c := range controllers {
		if err := c.Register(r.Group(c.BasePath(), c.Handlers()...)); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns the instrumented root handler.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Listen serves until Shutdown is called. It returns nil after a graceful stop.
func (s *Server) Listen() error {
	s.log.Infow("Listening", "address", s.http.Addr, "tls", s.config.Server.TLSCertFile != "")
	var err error
	if s.config.Server.TLSCertFile != "" && s.config.Server.TLSKeyFile != "" {
		err = s.http.ListenAndServeTLS(s.config.Server.TLSCertFile, s.config.Server.TLSKeyFile)
	} else {
		err = s.http.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.deps.Store.Ping(ctx); err != nil {
		system.GetReqLogger(c, s.log).Warnw("Readiness check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// preflight answers OPTIONS requests that the CORS middleware let through,
// i.e. those without an Origin header.
func preflight(c *gin.Context) {
	c.Status(http.StatusOK)
}

// bindBody decodes the JSON body into a T. A missing, oversized or malformed
// body yields the zero T so that validation reports the missing fields.
func bindBody[T any](c *gin.Context, log *zap.SugaredLogger) T {
	var v T
	if c.Request.Body == nil {
		return v
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(&v); err != nil {
		log.Debugw("Ignoring unreadable request body", "error", err)
		var zero T
		return zero
	}
	return v
}

func (s *Server) actor(c *gin.Context, user string) audit.Actor {
	return audit.Actor{
		User:      user,
		SourceIP:  ratelimit.Identity(c),
		UserAgent: c.Request.UserAgent(),
	}
}

func requestContext(c *gin.Context) *audit.RequestContext {
	return &audit.RequestContext{Method: c.Request.Method, Path: c.Request.URL.Path}
}

// auditDenied records sliding-window denials in the audit trail.
func (s *Server) auditDenied(c *gin.Context, category ratelimit.Category, identity string) {
	s.deps.Audit.RateLimited(c.Request.Context(), audit.Actor{SourceIP: identity, UserAgent: c.Request.UserAgent()}, requestContext(c), string(category))
}
