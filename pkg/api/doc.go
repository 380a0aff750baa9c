// Package api implements the HTTP server (Gin-based) for the wellness site:
// newsletter signup, contact form, admin login and first-admin setup, and
// the admin views over inquiries and subscribers.
package api
