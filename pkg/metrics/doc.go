// Package metrics defines Prometheus metrics for the wellness API, covering
// rate-limit decisions, logins, token verification, form submissions, mail
// delivery, and the audit pipeline.
package metrics
