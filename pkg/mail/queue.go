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


package mail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/toftewellness/wellness-api/pkg/metrics"
)

// QueueItem is a single message waiting for the worker.
type QueueItem struct {
	ID        string
	Receivers []string
	Subject   string
	Body      string
	CreatedAt time.Time
}

// Queue hands messages to a Sender on a background worker so request
// handlers never wait on SMTP. Retries happen inside the Sender.
type Queue struct {
	sender       Sender
	queue        chan *QueueItem
	log          *zap.SugaredLogger
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	maxQueueSize int
}

// NewQueue creates a new mail queue for asynchronous sending
func NewQueue(sender Sender, log *zap.SugaredLogger, maxQueueSize int) *Queue {
	if maxQueueSize <= 0 {
		maxQueueSize = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		sender:       sender,
		queue:        make(chan *QueueItem, maxQueueSize),
		log:          log.Named("mail-queue"),
		maxQueueSize: maxQueueSize,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins the background worker for processing emails
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.worker()
	q.log.Infow("Mail queue worker started", "maxQueueSize", q.maxQueueSize)
}

// Enqueue adds an email to the queue for sending
func (q *Queue) Enqueue(id string, receivers []string, subject, body string) error {
	host := q.sender.GetHost()
	if len(receivers) == 0 {
		metrics.MailQueueDropped.WithLabelValues(host).Inc()
		return fmt.Errorf("cannot enqueue email with no receivers")
	}

	select {
	case <-q.ctx.Done():
		metrics.MailQueueDropped.WithLabelValues(host).Inc()
		return fmt.Errorf("queue is shutting down")
	default:
	}

	item := &QueueItem{
		ID:        id,
		Receivers: receivers,
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now(),
	}

	select {
	case q.queue <- item:
		metrics.MailQueued.WithLabelValues(host).Inc()
		q.log.Debugw("Email queued for sending", "id", id, "receivers", len(receivers))
		return nil
	default:
		metrics.MailQueueDropped.WithLabelValues(host).Inc()
		q.log.Errorw("Mail queue is full, dropping message", "id", id, "queueSize", q.maxQueueSize)
		return fmt.Errorf("mail queue is full (capacity: %d)", q.maxQueueSize)
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			q.drain()
			return
		case item := <-q.queue:
			q.process(item)
		}
	}
}

// drain sends whatever is still buffered when Stop is called.
func (q *Queue) drain() {
	for {
		select {
		case item := <-q.queue:
			q.process(item)
		default:
			return
		}
	}
}

func (q *Queue) process(item *QueueItem) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Errorw("panic while sending queued email", "id", item.ID, "panic", r)
		}
	}()

	if err := q.sender.Send(item.Receivers, item.Subject, item.Body); err != nil {
		q.log.Errorw("Queued email could not be delivered",
			"id", item.ID,
			"error", err,
			"queuedFor", time.Since(item.CreatedAt).String())
		return
	}
	q.log.Infow("Queued email sent", "id", item.ID, "receivers", len(item.Receivers))
}

// Stop gracefully shuts down the queue and waits for buffered items to be sent
func (q *Queue) Stop(ctx context.Context) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.log.Info("Mail queue stopped gracefully")
		return nil
	case <-ctx.Done():
		q.log.Warn("Mail queue shutdown timeout, some items may not have been processed")
		return ctx.Err()
	}
}

// Length returns the current number of items in the queue
func (q *Queue) Length() int {
	return len(q.queue)
}
