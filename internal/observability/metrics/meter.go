// Copyright 2026 The Pressdesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter metric.Meter
}

// New creates a new meter instance
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return &Meter{
			meter: otel.Meter("noop"),
		}, nil
	}

	meter := otel.Meter(serviceName)

	return &Meter{
		meter: meter,
	}, nil
}

// GetMeter returns the underlying meter
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}

// CreateCounter creates a new counter metric
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// CreateHistogram creates a new histogram metric
func (m *Meter) CreateHistogram(name, description, unit string) (metric.Float64Histogram, error) {
	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return histogram, nil
}

// GateMetrics bundles the counters the admin gate records on every
// authentication decision.
type GateMetrics struct {
	LoginSuccess  metric.Int64Counter
	LoginFailure  metric.Int64Counter
	LoginLocked   metric.Int64Counter
	AccessDenied  metric.Int64Counter
	LoginDuration metric.Float64Histogram
}

// NewGateMetrics instruments the login and authorization paths.
func NewGateMetrics(m *Meter) (*GateMetrics, error) {
	success, err := m.CreateCounter("gate_login_success_total", "Successful admin logins")
	if err != nil {
		return nil, err
	}
	failure, err := m.CreateCounter("gate_login_failure_total", "Rejected admin login attempts")
	if err != nil {
		return nil, err
	}
	locked, err := m.CreateCounter("gate_login_locked_total", "Login attempts refused during lockout")
	if err != nil {
		return nil, err
	}
	denied, err := m.CreateCounter("gate_access_denied_total", "Authorization checks that resolved to deny")
	if err != nil {
		return nil, err
	}
	duration, err := m.CreateHistogram("gate_login_duration_seconds", "Wall time of login requests", "s")
	if err != nil {
		return nil, err
	}
	return &GateMetrics{
		LoginSuccess:  success,
		LoginFailure:  failure,
		LoginLocked:   locked,
		AccessDenied:  denied,
		LoginDuration: duration,
	}, nil
}
