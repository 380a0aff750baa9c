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


// Package store persists admin credentials, newsletter subscribers and
// contact inquiries. A MongoDB backend is used in production and an
// in-memory backend for tests and local development.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no document.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a unique key (email) already exists.
	ErrDuplicate = errors.New("store: duplicate key")
)

// Collection names shared by all backends.
const (
	CollectionAdmins      = "admin_users"
	CollectionSubscribers = "subscribers"
	CollectionInquiries   = "contact_inquiries"
)

// Admin is a provisioned administrator account.
type Admin struct {
	ID           string     `json:"_id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login"`
}

// Subscriber is a newsletter signup.
type Subscriber struct {
	ID           string    `json:"_id"`
	Email        string    `json:"email"`
	SubscribedAt time.Time `json:"subscribed_at"`
	Source       string    `json:"source"`
	IPAddress    string    `json:"ip_address"`
}

// Inquiry is a contact form submission.
type Inquiry struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	InquiryType string    `json:"inquiryType"`
	Message     string    `json:"message"`
	SubmittedAt time.Time `json:"submitted_at"`
	Status      string    `json:"status"`
	Source      string    `json:"source"`
	IPAddress   string    `json:"ip_address"`
}

// InquiryStatusNew is the status of a freshly submitted inquiry.
const InquiryStatusNew = "new"

// TypeCount is the number of inquiries of one inquiry type.
type TypeCount struct {
	Type  string `json:"_id" bson:"_id"`
	Count int64  `json:"count" bson:"count"`
}

type AdminStore interface {
	// FindAdminByEmail returns ErrNotFound when no admin has the given (normalized) email.
	FindAdminByEmail(ctx context.Context, email string) (*Admin, error)
	// InsertAdmin stores a new admin and returns its id. ErrDuplicate if the email exists.
	InsertAdmin(ctx context.Context, admin *Admin) (string, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

type SubscriberStore interface {
	FindSubscriberByEmail(ctx context.Context, email string) (*Subscriber, error)
	InsertSubscriber(ctx context.Context, sub *Subscriber) (string, error)
	// RecentSubscribers returns up to limit subscribers, newest first.
	RecentSubscribers(ctx context.Context, limit int) ([]Subscriber, error)
	// CountSubscribers counts subscribers since the given time; the zero time counts all.
	CountSubscribers(ctx context.Context, since time.Time) (int64, error)
}

type InquiryStore interface {
	InsertInquiry(ctx context.Context, inq *Inquiry) (string, error)
	// InquiriesExist reports whether any inquiry was ever stored.
	InquiriesExist(ctx context.Context) (bool, error)
	// RecentInquiries returns up to limit inquiries, newest first.
	RecentInquiries(ctx context.Context, limit int) ([]Inquiry, error)
	// CountInquiries counts inquiries since the given time; the zero time counts all.
	CountInquiries(ctx context.Context, since time.Time) (int64, error)
	CountInquiriesByType(ctx context.Context) ([]TypeCount, error)
}

// Store is the full persistence surface used by the API.
type Store interface {
	AdminStore
	SubscriberStore
	InquiryStore

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
