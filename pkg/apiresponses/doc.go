// Package apiresponses provides the JSON envelopes shared by every handler:
// {"success":false,"error":...} for failures and {"success":true,...} for
// results.
package apiresponses
