// Package relay forwards service calls to an external process over
// socket.io. Each call emits one event carrying a "request_id" and waits for
// the reply event echoing it; replies to other requests are ignored. A reply
// carrying an "error" field fails the call.
package relay

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/services"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Event names emitted by the relay. Replies use the same name with a
// ":done" suffix.
const (
	EventCompositorSetup = "compositor.setup"
	EventEmailSend       = "email.send"

	replySuffix = ":done"

	requestIDField = "request_id"
)

// DefaultTimeout bounds connecting and every request when Config leaves it unset.
const DefaultTimeout = 15 * time.Second

// ErrNotConnected is returned when a call is made on a closed relay.
var ErrNotConnected = errors.New("relay is not connected")

// Config configures a relay connection.
type Config struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// Relay is a connected socket.io client implementing the services.
type Relay struct {
	io      *socket.Socket
	timeout time.Duration
	// mu serializes calls so that at most one reply listener is registered.
	mu sync.Mutex
}

var (
	_ services.Compositor = (*Relay)(nil)
	_ services.Notifier   = (*Relay)(nil)
)

// Dial connects to the relay server and waits for the connection to be
// established.
func Dial(ctx context.Context, cfg Config) (*Relay, error) {
	logger := ctxlog.FromContext(ctx).With("relay", cfg.URL)

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse relay URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Relay connected", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		connectChan <- firstError(errs)
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("relay connection failed: %w", err)
		}
		return &Relay{io: io, timeout: timeout}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while connecting to relay: %w", ctx.Err())
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %v connecting to relay", timeout)
	}
}

// SetupPasses asks the relay to build compositor outputs for a view layer.
func (r *Relay) SetupPasses(ctx context.Context, req services.CompositorRequest) error {
	return r.call(ctx, EventCompositorSetup, map[string]any{
		"view_layer": req.ViewLayer,
		"use_passes": req.UsePasses,
	})
}

// Send asks the relay to deliver a notification.
func (r *Relay) Send(ctx context.Context, msg services.Email) error {
	return r.call(ctx, EventEmailSend, map[string]any{
		"subject":     msg.Subject,
		"content":     msg.Content,
		"sender_name": msg.SenderName,
		"email":       msg.Recipient,
	})
}

// Close disconnects from the relay server.
func (r *Relay) Close() error {
	if r.io != nil {
		r.io.Disconnect()
	}
	return nil
}

func (r *Relay) call(ctx context.Context, event string, payload map[string]any) error {
	if r.io == nil || !r.io.Connected() {
		return ErrNotConnected
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	payload[requestIDField] = id
	logger := ctxlog.FromContext(ctx).With("event", event, "sid", r.io.Id(), requestIDField, id)

	opCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	reply := types.EventName(event + replySuffix)
	listener, done := awaitReply(id, func(other any) {
		logger.Debug("Ignoring reply to another request", "reply_to", other)
	})
	if err := r.io.On(reply, listener); err != nil {
		return fmt.Errorf("%s: %w", event, err)
	}
	defer r.io.RemoveListener(reply, listener)

	logger.Debug("Emitting relay event")
	if err := r.io.Emit(event, payload); err != nil {
		return fmt.Errorf("%s: %w", event, err)
	}

	select {
	case <-opCtx.Done():
		return fmt.Errorf("timed out after %v waiting for %s", r.timeout, reply)
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s: %w", event, err)
		}
		logger.Debug("Relay call completed")
		return nil
	}
}

// awaitReply returns a listener that delivers the outcome of the reply
// echoing id. Replies to other requests are passed to ignored.
func awaitReply(id string, ignored func(other any)) (types.Listener, <-chan error) {
	done := make(chan error, 1)
	listener := func(data ...any) {
		if other := replyID(data); other != id {
			ignored(other)
			return
		}
		select {
		case done <- replyError(data):
		default:
		}
	}
	return listener, done
}

// replyID returns the request id a reply answers, or nil when it has none.
func replyID(data []any) any {
	if len(data) == 0 {
		return nil
	}
	m, ok := data[0].(map[string]any)
	if !ok {
		return nil
	}
	return m[requestIDField]
}

// replyError extracts a failure from reply arguments. A reply is a failure
// when its first argument is a map with a non-empty "error" field.
func replyError(data []any) error {
	if len(data) == 0 {
		return nil
	}
	m, ok := data[0].(map[string]any)
	if !ok {
		return nil
	}
	switch e := m["error"].(type) {
	case nil:
		return nil
	case string:
		if e == "" {
			return nil
		}
		return errors.New(e)
	default:
		return fmt.Errorf("%v", e)
	}
}

func firstError(args []any) error {
	if len(args) == 0 {
		return errors.New("connection refused")
	}
	if err, ok := args[0].(error); ok {
		return err
	}
	return fmt.Errorf("%v", args[0])
}
