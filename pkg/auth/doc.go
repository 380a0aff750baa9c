// Package auth verifies admin credentials, issues and verifies HS256 access
// tokens, and provisions the first admin account behind a pre-shared setup key.
package auth
