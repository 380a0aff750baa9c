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
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/toftewellness/wellness-api/pkg/apiresponses"
	"github.com/toftewellness/wellness-api/pkg/store"
	"github.com/toftewellness/wellness-api/pkg/system"
)

const (
	inquiriesLimit   = 50
	subscribersLimit = 100

	msgNoInquiries = "No inquiries collection found - submit a contact form first"
)

// InquiryStats summarises stored inquiries.
type InquiryStats struct {
	Total    int64             `json:"total"`
	Today    int64             `json:"today"`
	ThisWeek int64             `json:"thisWeek"`
	ByType   []store.TypeCount `json:"byType"`
}

// SubscriberStats summarises stored subscribers.
type SubscriberStats struct {
	Total    int64 `json:"total"`
	Today    int64 `json:"today"`
	ThisWeek int64 `json:"thisWeek"`
}

// AdminController serves the read-only admin views under /api/manage.
// Every route requires an admin bearer token.
type AdminController struct {
	s   *Server
	log *zap.SugaredLogger
}

func NewAdminController(s *Server) *AdminController {
	return &AdminController{s: s, log: s.log.Named("admin")}
}

func (ac *AdminController) BasePath() string { return "manage" }

func (ac *AdminController) Handlers() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		ac.s.deps.AdminLimiter.Middleware(ac.s.auditDenied),
		ac.s.RequireAdmin(),
	}
}

func (ac *AdminController) Register(rg *gin.RouterGroup) error {
	rg.OPTIONS("/inquiries", preflight)
	rg.GET("/inquiries", ac.inquiries)
	rg.OPTIONS("/subscribers", preflight)
	rg.GET("/subscribers", ac.subscribers)
	return nil
}

// statsWindows returns the start of the current local day and the start of
// the trailing seven-day window.
func statsWindows(now time.Time) (today, week time.Time) {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), now.Add(-7 * 24 * time.Hour)
}

func (ac *AdminController) inquiries(c *gin.Context) {
	log := system.EnrichReqLoggerWithAuth(c, system.GetReqLogger(c, ac.log))
	ctx := c.Request.Context()
	st := ac.s.deps.Store

	exists, err := st.InquiriesExist(ctx)
	if err != nil {
		apiresponses.RespondInternalError(c, "check inquiries", err, apiresponses.MsgServerError, log)
		return
	}
	if !exists {
		apiresponses.RespondOK(c, gin.H{
			"data": gin.H{
				"inquiries": []store.Inquiry{},
				"stats":     InquiryStats{ByType: []store.TypeCount{}},
			},
			"message": msgNoInquiries,
		})
		return
	}

	items, err := st.RecentInquiries(ctx, inquiriesLimit)
	if err != nil {
		apiresponses.RespondInternalError(c, "list inquiries", err, apiresponses.MsgServerError, log)
		return
	}
	stats, err := ac.inquiryStats(ctx, st)
	if err != nil {
		apiresponses.RespondInternalError(c, "count inquiries", err, apiresponses.MsgServerError, log)
		return
	}
	if items == nil {
		items = []store.Inquiry{}
	}

	log.Debugw("Listed inquiries", "returned", len(items), "total", stats.Total)
	apiresponses.RespondOK(c, gin.H{
		"data": gin.H{
			"inquiries": items,
			"stats":     stats,
		},
	})
}

func (ac *AdminController) inquiryStats(ctx context.Context, st store.InquiryStore) (InquiryStats, error) {
	today, week := statsWindows(ac.s.deps.Now())
	var stats InquiryStats
	var err error
	if stats.Total, err = st.CountInquiries(ctx, time.Time{}); err != nil {
		return stats, err
	}
	if stats.Today, err = st.CountInquiries(ctx, today); err != nil {
		return stats, err
	}
	if stats.ThisWeek, err = st.CountInquiries(ctx, week); err != nil {
		return stats, err
	}
	if stats.ByType, err = st.CountInquiriesByType(ctx); err != nil {
		return stats, err
	}
	if stats.ByType == nil {
		stats.ByType = []store.TypeCount{}
	}
	return stats, nil
}

func (ac *AdminController) subscribers(c *gin.Context) {
	log := system.EnrichReqLoggerWithAuth(c, system.GetReqLogger(c, ac.log))
	ctx := c.Request.Context()
	st := ac.s.deps.Store

	items, err := st.RecentSubscribers(ctx, subscribersLimit)
	if err != nil {
		apiresponses.RespondInternalError(c, "list subscribers", err, apiresponses.MsgServerError, log)
		return
	}
	if items == nil {
		items = []store.Subscriber{}
	}

	today, week := statsWindows(ac.s.deps.Now())
	var stats SubscriberStats
	if stats.Total, err = st.CountSubscribers(ctx, time.Time{}); err == nil {
		if stats.Today, err = st.CountSubscribers(ctx, today); err == nil {
			stats.ThisWeek, err = st.CountSubscribers(ctx, week)
		}
	}
	if err != nil {
		apiresponses.RespondInternalError(c, "count subscribers", err, apiresponses.MsgServerError, log)
		return
	}

	log.Debugw("Listed subscribers", "returned", len(items), "total", stats.Total)
	apiresponses.RespondOK(c, gin.H{
		"data": gin.H{
			"subscribers": items,
			"stats":       stats,
		},
	})
}
