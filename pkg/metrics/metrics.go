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

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Rate limiting
	RateLimitDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wellness_ratelimit_decisions_total",
		Help: "Sliding-window admission decisions by category and decision (admitted/denied)",
	}, []string{"category", "decision"})
	RateLimitEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wellness_ratelimit_evictions_total",
		Help: "Rate-limit windows evicted because the table reached its key bound",
	})
	RateLimitTrackedKeys = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wellness_ratelimit_tracked_keys",
		Help: "Number of (category, identity) windows currently held in memory",
	})
	AdminRateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wellness_admin_ratelimited_total",
		Help: "Admin read requests rejected by the per-IP token bucket",
	})

	// Authentication
	LoginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wellness_login_attempts_total",
		Help: "Admin login attempts by outcome (success/invalid/error)",
	}, []string{"outcome"})
	LastLoginUpdateFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wellness_last_login_update_failures_total",
		Help: "Best-effort last-login writes that failed after a successful login",
	})
	TokenVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wellness_token_verifications_total",
		Help: "Bearer token verifications by outcome (valid/no_token/invalid/denied)",
	}, []string{"outcome"})
	ProvisionAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wellness_provision_attempts_total",
		Help: "Admin provisioning attempts by outcome",
	}, []string{"outcome"})

	// Form submissions
	Subscriptions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wellness_subscriptions_total",
		Help: "Newsletter subscriptions by result (created/existing)",
	}, []string{"result"})
	Inquiries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wellness_inquiries_total",
		Help: "Contact inquiries stored",
	})

	// Mail metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wellness_mail_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wellness_mail_send_failure_total",
		Help: "Total number of failed mail sends",
	}, []string{"host"})
	MailQueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wellness_mail_queued_total",
		Help: "Total number of mails accepted by the queue",
	}, []string{"host"})
	MailQueueDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wellness_mail_queue_dropped_total",
		Help: "Total number of mails dropped because the queue was full or stopping",
	}, []string{"host"})

	// Audit metrics
	AuditEventsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wellness_audit_events_emitted_total",
		Help: "Audit events accepted by the audit manager",
	}, []string{"type"})
	AuditEventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wellness_audit_events_dropped_total",
		Help: "Audit events dropped because the queue was full",
	})
	AuditSinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wellness_audit_sink_errors_total",
		Help: "Audit sink write failures by sink and error class",
	}, []string{"sink", "error_type"})
	AuditSinkLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wellness_audit_sink_latency_seconds",
		Help:    "Audit sink write latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"sink"})
)

func init() {
	prometheus.MustRegister(RateLimitDecisions)
	prometheus.MustRegister(RateLimitEvictions)
	prometheus.MustRegister(RateLimitTrackedKeys)
	prometheus.MustRegister(AdminRateLimited)
	prometheus.MustRegister(LoginAttempts)
	prometheus.MustRegister(LastLoginUpdateFailures)
	prometheus.MustRegister(TokenVerifications)
	prometheus.MustRegister(ProvisionAttempts)
	prometheus.MustRegister(Subscriptions)
	prometheus.MustRegister(Inquiries)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(MailQueued)
	prometheus.MustRegister(MailQueueDropped)
	prometheus.MustRegister(AuditEventsEmitted)
	prometheus.MustRegister(AuditEventsDropped)
	prometheus.MustRegister(AuditSinkErrors)
	prometheus.MustRegister(AuditSinkLatency)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
