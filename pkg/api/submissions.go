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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/toftewellness/wellness-api/pkg/apiresponses"
	"github.com/toftewellness/wellness-api/pkg/metrics"
	"github.com/toftewellness/wellness-api/pkg/ratelimit"
	"github.com/toftewellness/wellness-api/pkg/store"
	"github.com/toftewellness/wellness-api/pkg/system"
	"github.com/toftewellness/wellness-api/pkg/validation"
)

const (
	msgTooManySignups  = "Too many signup attempts. Please try again in an hour."
	msgTooManyContacts = "Too many contact attempts. Please try again later."

	msgSubscribed          = "Subscription successful"
	msgAlreadySubscribed   = "Email already registered"
	msgContactSent         = "Your message has been sent successfully!"
	msgContactServerError  = "Server error occurred. Please try again."
	msgContactFieldMissing = "All fields are required"

	sourceDirect = "direct"
)

type subscribeRequest struct {
	Email string `json:"email"`
}

// SubmissionController serves the public forms: newsletter signup and the
// contact form.
type SubmissionController struct {
	s   *Server
	log *zap.SugaredLogger
}

func NewSubmissionController(s *Server) *SubmissionController {
	return &SubmissionController{s: s, log: s.log.Named("submissions")}
}

func (sc *SubmissionController) BasePath() string { return "" }

func (sc *SubmissionController) Handlers() []gin.HandlerFunc { return nil }

func (sc *SubmissionController) Register(rg *gin.RouterGroup) error {
	limiter := sc.s.deps.Limiter

	rg.OPTIONS("/subscribe", preflight)
	rg.POST("/subscribe", limiter.Middleware(ratelimit.CategorySignup, msgTooManySignups, sc.s.auditDenied), sc.subscribe)

	rg.OPTIONS("/manage/contact", preflight)
	rg.POST("/manage/contact", limiter.Middleware(ratelimit.CategoryContact, msgTooManyContacts, sc.s.auditDenied), sc.contact)
	return nil
}

// source is the page the form was posted from, or "direct".
func source(c *gin.Context) string {
	if ref := c.Request.Referer(); ref != "" {
		return ref
	}
	return sourceDirect
}

func (sc *SubmissionController) subscribe(c *gin.Context) {
	log := system.GetReqLogger(c, sc.log)
	req := bindBody[subscribeRequest](c, log)
	ctx := c.Request.Context()

	email, err := validation.Email(req.Email)
	if err != nil {
		apiresponses.RespondBadRequest(c, err.Error())
		return
	}

	existing, err := sc.s.deps.Store.FindSubscriberByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		sc.alreadySubscribed(c)
		return
	case err != nil && !errors.Is(err, store.ErrNotFound):
		apiresponses.RespondInternalError(c, "look up subscriber", err, apiresponses.MsgServerErrorOccurred, log)
		return
	}

	id, err := sc.s.deps.Store.InsertSubscriber(ctx, &store.Subscriber{
		Email:        email,
		SubscribedAt: sc.s.deps.Now().UTC(),
		Source:       source(c),
		IPAddress:    ratelimit.Identity(c),
	})
	if errors.Is(err, store.ErrDuplicate) {
		// lost a race with a concurrent signup for the same address
		sc.alreadySubscribed(c)
		return
	}
	if err != nil {
		apiresponses.RespondInternalError(c, "store subscriber", err, apiresponses.MsgServerErrorOccurred, log)
		return
	}

	metrics.Subscriptions.WithLabelValues("created").Inc()
	log.Infow("New subscriber", "subscriberId", id)
	apiresponses.RespondOK(c, gin.H{
		"message": msgSubscribed,
		"id":      id,
	})
}

func (sc *SubmissionController) alreadySubscribed(c *gin.Context) {
	metrics.Subscriptions.WithLabelValues("existing").Inc()
	apiresponses.RespondOK(c, gin.H{
		"message":       msgAlreadySubscribed,
		"alreadyExists": true,
	})
}

func (sc *SubmissionController) contact(c *gin.Context) {
	log := system.GetReqLogger(c, sc.log)
	form := bindBody[validation.ContactForm](c, log)

	form, err := validation.Contact(form)
	switch {
	case errors.Is(err, validation.ErrContactFieldsRequired):
		apiresponses.RespondBadRequest(c, msgContactFieldMissing)
		return
	case err != nil:
		apiresponses.RespondBadRequest(c, err.Error())
		return
	}

	inq := &store.Inquiry{
		Name:        form.Name,
		Email:       form.Email,
		InquiryType: form.InquiryType,
		Message:     form.Message,
		SubmittedAt: sc.s.deps.Now().UTC(),
		Status:      store.InquiryStatusNew,
		Source:      source(c),
		IPAddress:   ratelimit.Identity(c),
	}
	id, err := sc.s.deps.Store.InsertInquiry(c.Request.Context(), inq)
	if err != nil {
		apiresponses.RespondInternalError(c, "store inquiry", err, msgContactServerError, log)
		return
	}
	inq.ID = id
	metrics.Inquiries.Inc()
	log.Infow("New contact inquiry", "inquiryId", id, "inquiryType", inq.InquiryType)

	if err := sc.s.deps.Notifier.NotifyInquiry(*inq); err != nil {
		log.Warnw("Failed to queue inquiry notification", "inquiryId", id, "error", err)
	}

	apiresponses.RespondOK(c, gin.H{
		"message": msgContactSent,
		"id":      id,
	})
}
