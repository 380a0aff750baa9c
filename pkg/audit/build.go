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

package audit

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/toftewellness/wellness-api/pkg/config"
)

// NewFromConfig builds the audit pipeline described by cfg: the log sink
// always, plus a Kafka sink when configured. It returns nil when auditing
// is disabled.
func NewFromConfig(cfg config.Audit, logger *zap.Logger) (*Manager, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	sinks := []Sink{NewLogSink(logger)}
	if cfg.Kafka != nil {
		ks, err := NewKafkaSink(*cfg.Kafka, logger)
		if err != nil {
			return nil, fmt.Errorf("creating kafka audit sink: %w", err)
		}
		sinks = append(sinks, ks)
	}

	var sink Sink = sinks[0]
	if len(sinks) > 1 {
		sink = NewMultiSink(sinks, logger)
	}
	return NewManager(sink, ManagerConfig{QueueSize: cfg.QueueSize, WorkerCount: cfg.WorkerCount}, logger), nil
}
