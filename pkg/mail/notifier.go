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
	"time"

	"go.uber.org/zap"

	"github.com/toftewellness/wellness-api/pkg/config"
	"github.com/toftewellness/wellness-api/pkg/store"
)

// Notifier tells the site owners about new contact inquiries.
// A nil *Notifier is valid and does nothing, which is what NewNotifier
// returns when mail is not configured.
type Notifier struct {
	queue      *Queue
	recipients []string
	brandName  string
	logger     *zap.SugaredLogger
}

// NewNotifier builds the sender and queue from cfg and starts the worker.
func NewNotifier(cfg config.Mail, logger *zap.SugaredLogger) *Notifier {
	if !cfg.Enabled() {
		logger.Info("Mail notifications disabled: mail.host or mail.notifyAddresses not set")
		return nil
	}
	return newNotifier(NewSender(cfg, logger), cfg, logger)
}

func newNotifier(sender Sender, cfg config.Mail, logger *zap.SugaredLogger) *Notifier {
	q := NewQueue(sender, logger, cfg.QueueSize)
	q.Start()
	brand := cfg.SenderName
	if brand == "" {
		brand = "Tofte Wellness"
	}
	return &Notifier{
		queue:      q,
		recipients: append([]string(nil), cfg.NotifyAddresses...),
		brandName:  brand,
		logger:     logger.Named("notifier"),
	}
}

// NotifyInquiry renders and queues the owner notification for inq.
func (n *Notifier) NotifyInquiry(inq store.Inquiry) error {
	if n == nil {
		return nil
	}
	params := InquiryMailParams{
		ID:          inq.ID,
		Name:        inq.Name,
		Email:       inq.Email,
		InquiryType: inq.InquiryType,
		Message:     inq.Message,
		SubmittedAt: inq.SubmittedAt.UTC().Format(time.RFC1123),
		Source:      inq.Source,
		BrandName:   n.brandName,
	}
	body, err := RenderInquiry(params)
	if err != nil {
		return fmt.Errorf("rendering inquiry notification: %w", err)
	}
	return n.queue.Enqueue(inq.ID, n.recipients, InquirySubject(params), body)
}

// Stop drains the queue, bounded by ctx.
func (n *Notifier) Stop(ctx context.Context) error {
	if n == nil {
		return nil
	}
	return n.queue.Stop(ctx)
}
