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


package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store. Data is lost on restart.
type Memory struct {
	mu          sync.RWMutex
	admins      map[string]*Admin // by id
	subscribers []Subscriber
	inquiries   []Inquiry
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{admins: make(map[string]*Admin)}
}

func (m *Memory) FindAdminByEmail(_ context.Context, email string) (*Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.admins {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) InsertAdmin(_ context.Context, admin *Admin) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.admins {
		if a.Email == admin.Email {
			return "", ErrDuplicate
		}
	}
	cp := *admin
	cp.ID = uuid.NewString()
	m.admins[cp.ID] = &cp
	return cp.ID, nil
}

func (m *Memory) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.admins[id]
	if !ok {
		return ErrNotFound
	}
	a.LastLogin = &at
	return nil
}

func (m *Memory) FindSubscriberByEmail(_ context.Context, email string) (*Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.subscribers {
		if s.Email == email {
			cp := s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) InsertSubscriber(_ context.Context, sub *Subscriber) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.subscribers {
		if s.Email == sub.Email {
			return "", ErrDuplicate
		}
	}
	cp := *sub
	cp.ID = uuid.NewString()
	m.subscribers = append(m.subscribers, cp)
	return cp.ID, nil
}

func (m *Memory) RecentSubscribers(_ context.Context, limit int) ([]Subscriber, error) {
	m.mu.RLock()
	out := slices.Clone(m.subscribers)
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].SubscribedAt.After(out[j].SubscribedAt) })
	return truncate(out, limit), nil
}

func (m *Memory) CountSubscribers(_ context.Context, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, s := range m.subscribers {
		if !s.SubscribedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) InsertInquiry(_ context.Context, inq *Inquiry) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *inq
	cp.ID = uuid.NewString()
	m.inquiries = append(m.inquiries, cp)
	return cp.ID, nil
}

func (m *Memory) InquiriesExist(_ context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.inquiries) > 0, nil
}

func (m *Memory) RecentInquiries(_ context.Context, limit int) ([]Inquiry, error) {
	m.mu.RLock()
	out := slices.Clone(m.inquiries)
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return truncate(out, limit), nil
}

func (m *Memory) CountInquiries(_ context.Context, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, q := range m.inquiries {
		if !q.SubmittedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// CountInquiriesByType returns counts ordered by first appearance of each type.
func (m *Memory) CountInquiriesByType(_ context.Context) ([]TypeCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := make(map[string]int)
	out := []TypeCount{}
	for _, q := range m.inquiries {
		i, ok := idx[q.InquiryType]
		if !ok {
			i = len(out)
			idx[q.InquiryType] = i
			out = append(out, TypeCount{Type: q.InquiryType})
		}
		out[i].Count++
	}
	return out, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close(context.Context) error { return nil }

func truncate[T any](items []T, limit int) []T {
	if items == nil {
		items = []T{}
	}
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
