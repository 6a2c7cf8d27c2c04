// Package socketio provides the "overlay" report sink. It pushes each report
// to a development overlay over socket.io and waits for the overlay to
// acknowledge it.
package socketio

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/stagecheck/internal/ctxlog"
	"github.com/specialistvlad/stagecheck/internal/engine"
	"github.com/specialistvlad/stagecheck/internal/registry"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// SinkName is the name the sink is registered under.
const SinkName = "overlay"

// Defaults for unset options.
const (
	DefaultEvent   = "stagecheck:report"
	DefaultTimeout = 10 * time.Second
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the sink with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterSink(SinkName, func(opts registry.SinkOptions) (registry.Sink, error) {
		return New(Config{
			URL:                opts.OverlayURL,
			Namespace:          opts.OverlayNamespace,
			Event:              opts.OverlayEvent,
			Timeout:            opts.OverlayTimeout,
			InsecureSkipVerify: opts.OverlayInsecure,
		})
	})
}

// Config configures the overlay connection.
type Config struct {
	URL                string
	Namespace          string
	Event              string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Sink publishes reports to an overlay server.
type Sink struct {
	cfg     Config
	baseURL string
	path    string
}

// opResult is a private struct to safely pass results through the done channel.
type opResult struct {
	err error
}

// New validates cfg and creates the sink. No connection is made until the
// first Publish.
func New(cfg Config) (*Sink, error) {
	if cfg.URL == "" {
		return nil, errors.New("overlay url is required")
	}
	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("overlay url '%s' must be absolute", cfg.URL)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "/"
	}
	if cfg.Event == "" {
		cfg.Event = DefaultEvent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Sink{
		cfg:     cfg,
		baseURL: fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host),
		path:    parsedURL.Path,
	}, nil
}

// Name implements registry.Sink.
func (s *Sink) Name() string { return SinkName }

// AckEvent is the event the overlay answers with once a report is shown.
func (s *Sink) AckEvent() string { return s.cfg.Event + ":ack" }

// Publish connects, emits the report and waits for the acknowledgement.
func (s *Sink) Publish(ctx context.Context, report *engine.Report) error {
	logger := ctxlog.FromContext(ctx).With("sink", SinkName, "url", s.cfg.URL, "event", s.cfg.Event)
	logger.Debug("Publishing report to overlay.")

	payload, err := toPayload(report)
	if err != nil {
		return err
	}

	var isConnected atomic.Bool
	done := make(chan opResult, 1)
	finish := func(res opResult) {
		select {
		case done <- res:
		default:
		}
	}
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	opts := socket.DefaultOptions()
	if s.path != "" {
		opts.SetPath(s.path)
	}
	if s.cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(s.baseURL, opts)
	io := manager.Socket(s.cfg.Namespace, opts)
	defer func() {
		logger.Debug("Disconnecting socket client")
		io.Disconnect()
	}()

	io.On(types.EventName("connect"), func(...any) {
		isConnected.Store(true)
		logger.Debug("Connected to overlay.", "sid", io.Id())
		io.Emit(s.cfg.Event, payload)
	})

	io.On(types.EventName("connect_error"), func(errs ...any) {
		if len(errs) > 0 {
			if err, ok := errs[0].(error); ok {
				finish(opResult{err: fmt.Errorf("socket.io connection failed: %w", err)})
				return
			}
		}
		finish(opResult{err: errors.New("socket.io connection failed")})
	})

	io.On(types.EventName(s.AckEvent()), func(...any) {
		finish(opResult{})
	})

	io.Connect()

	select {
	case <-opCtx.Done():
		if isConnected.Load() {
			return fmt.Errorf("timed out after connecting while waiting for event '%s'", s.AckEvent())
		}
		return errors.New("timed out while waiting for initial connection")
	case res := <-done:
		if res.err == nil {
			logger.Info("📣 Report delivered to overlay.", "violations", report.ViolationCount())
		}
		return res.err
	}
}

// toPayload converts the report into plain maps and slices so the socket.io
// encoder sees the same field names as the json sink.
func toPayload(report *engine.Report) (map[string]any, error) {
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return payload, nil
}
