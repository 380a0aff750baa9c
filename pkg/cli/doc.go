// Package cli defines the wellness-api command tree: serve runs the HTTP
// API, provision-admin creates the first admin account from a terminal and
// version prints build metadata.
package cli
