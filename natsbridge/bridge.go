// Package natsbridge republishes framework, bundle, and service events
// as JSON messages on NATS subjects, giving remote tooling a live view
// of an in-process framework without linking against it.
//
// Subjects follow the pattern {prefix}.{kind}.{type}, for example
// events.service.registered or events.bundle.started.
package natsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/xru192/CppMicroServices/errors"
	"github.com/xru192/CppMicroServices/framework"
	"github.com/xru192/CppMicroServices/pkg/retry"
)

// Envelope is the JSON shape published for every event
type Envelope struct {
	Timestamp   string   `json:"timestamp"` // RFC3339 format
	Kind        string   `json:"kind"`      // "service", "bundle" or "framework"
	Type        string   `json:"type"`
	ServiceID   int64    `json:"service_id,omitempty"`
	ObjectClass []string `json:"object_class,omitempty"`
	Bundle      string   `json:"bundle,omitempty"`
	Message     string   `json:"message,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// Bridge forwards framework events to NATS. Create with Attach; Close
// detaches the listeners. Publish failures are retried and then logged;
// they never propagate into event dispatch.
type Bridge struct {
	nc             *nats.Conn
	ctx            *framework.BundleContext
	prefix         string
	logger         *slog.Logger
	retryCfg       retry.Config
	publishTimeout time.Duration
	tokens         []framework.ListenerToken
}

// Option is a functional option for configuring the Bridge
type Option func(*Bridge) error

// WithSubjectPrefix sets the subject prefix (default "events")
func WithSubjectPrefix(prefix string) Option {
	return func(b *Bridge) error {
		if prefix == "" || strings.ContainsAny(prefix, " \t*>") {
			return errors.WrapInvalid(errors.ErrInvalidArgument,
				"Bridge", "WithSubjectPrefix", "subject prefix validation")
		}
		b.prefix = prefix
		return nil
	}
}

// WithLogger sets the logger used for publish failures
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) error {
		if logger == nil {
			return errors.WrapInvalid(errors.ErrInvalidArgument,
				"Bridge", "WithLogger", "logger validation")
		}
		b.logger = logger
		return nil
	}
}

// WithRetry sets the retry policy for failed publishes
func WithRetry(cfg retry.Config) Option {
	return func(b *Bridge) error {
		b.retryCfg = cfg
		return nil
	}
}

// WithPublishTimeout bounds the total time spent retrying one publish
func WithPublishTimeout(d time.Duration) Option {
	return func(b *Bridge) error {
		if d <= 0 {
			return errors.WrapInvalid(errors.ErrInvalidArgument,
				"Bridge", "WithPublishTimeout", "timeout validation")
		}
		b.publishTimeout = d
		return nil
	}
}

// Attach subscribes the bridge to all service, bundle, and framework
// events observable through the given bundle context.
func Attach(ctx *framework.BundleContext, nc *nats.Conn, opts ...Option) (*Bridge, error) {
	if ctx == nil || nc == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidArgument,
			"Bridge", "Attach", "context and connection validation")
	}

	b := &Bridge{
		nc:             nc,
		ctx:            ctx,
		prefix:         "events",
		logger:         slog.Default(),
		retryCfg:       retry.DefaultConfig(),
		publishTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	svcTok, err := ctx.AddServiceListener(b.onServiceEvent, nil, "")
	if err != nil {
		return nil, errors.Wrap(err, "Bridge", "Attach", "service listener registration")
	}
	bndTok, err := ctx.AddBundleListener(b.onBundleEvent, nil)
	if err != nil {
		return nil, errors.Wrap(err, "Bridge", "Attach", "bundle listener registration")
	}
	fwkTok, err := ctx.AddFrameworkListener(b.onFrameworkEvent, nil)
	if err != nil {
		return nil, errors.Wrap(err, "Bridge", "Attach", "framework listener registration")
	}
	b.tokens = []framework.ListenerToken{svcTok, bndTok, fwkTok}

	return b, nil
}

// Close detaches the bridge's listeners. Safe to call after the owning
// context has been invalidated; the listeners are gone either way.
func (b *Bridge) Close() error {
	for _, token := range b.tokens {
		// An invalidated context has already dropped its listeners
		_ = b.ctx.RemoveListener(token)
	}
	b.tokens = nil
	return nil
}

func (b *Bridge) onServiceEvent(ev framework.ServiceEvent, _ any) {
	env := Envelope{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Kind:      "service",
		Type:      ev.Type.String(),
		ServiceID: ev.Reference.ID(),
	}
	if classes, ok := ev.Reference.GetProperty(framework.ObjectClass).Value().([]string); ok {
		env.ObjectClass = classes
	}
	if producer := ev.Reference.Bundle(); producer != nil {
		env.Bundle = producer.SymbolicName()
	}
	b.publish("service", ev.Type.String(), env)
}

func (b *Bridge) onBundleEvent(ev framework.BundleEvent, _ any) {
	env := Envelope{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Kind:      "bundle",
		Type:      ev.Type.String(),
	}
	if ev.Bundle != nil {
		env.Bundle = ev.Bundle.SymbolicName()
	}
	b.publish("bundle", ev.Type.String(), env)
}

func (b *Bridge) onFrameworkEvent(ev framework.FrameworkEvent, _ any) {
	env := Envelope{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Kind:      "framework",
		Type:      ev.Type.String(),
		Message:   ev.Message,
	}
	if ev.Bundle != nil {
		env.Bundle = ev.Bundle.SymbolicName()
	}
	if ev.Err != nil {
		env.Error = ev.Err.Error()
	}
	b.publish("framework", ev.Type.String(), env)
}

// publish marshals and sends one envelope, retrying transient failures.
// Events run on the dispatching goroutine, so failures are logged rather
// than returned.
func (b *Bridge) publish(kind, eventType string, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		b.logger.Error("failed to marshal event envelope", "error", err)
		return
	}

	subject := fmt.Sprintf("%s.%s.%s", b.prefix, kind, strings.ToLower(eventType))

	ctx, cancel := context.WithTimeout(context.Background(), b.publishTimeout)
	defer cancel()

	if err := retry.Do(ctx, b.retryCfg, func() error {
		return b.nc.Publish(subject, data)
	}); err != nil {
		b.logger.Error("failed to publish event to NATS", "subject", subject, "error", err)
	}
}
