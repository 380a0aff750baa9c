// Package audit records security-relevant events (logins, provisioning,
// rate-limit denials, rejected tokens) to a structured log and, optionally,
// a Kafka topic. Emission is asynchronous and never blocks a request.
package audit
