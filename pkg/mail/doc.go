// Package mail sends owner notifications for new contact inquiries: SMTP
// delivery with retries, HTML template rendering, and a background queue.
package mail
