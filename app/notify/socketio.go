package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/bvisness/landflow/app/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// RendererEvent is the socket.io event name node events are emitted under.
const RendererEvent = "node:event"

// DefaultConnectTimeout bounds Dial when the caller passes no timeout.
const DefaultConnectTimeout = 5 * time.Second

// SocketIO pushes node events to an external renderer over socket.io.
type SocketIO struct {
	io *socket.Socket
}

var _ Notifier = &SocketIO{}

// Dial connects to the renderer and waits up to timeout for the connection
// to come up. A failed attempt is not retried.
func Dial(ctx context.Context, rawURL, namespace string, timeout time.Duration) (*SocketIO, error) {
	logger := ctxlog.FromContext(ctx).With("renderer", rawURL)

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse renderer URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("renderer URL %q must be absolute", rawURL)
	}

	opts := socket.DefaultOptions()
	if parsed.Path != "" {
		opts.SetPath(parsed.Path)
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	opts.SetTimeout(timeout)
	opts.SetReconnection(false)

	manager := socket.NewManager(fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host), opts)
	io := manager.Socket(namespace, opts)

	connected := make(chan error, 1)
	signal := func(err error) {
		select {
		case connected <- err:
		default:
		}
	}
	io.Once(types.EventName("connect"), func(...any) {
		signal(nil)
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		signal(connectError(errs))
	})

	logger.Debug("Connecting to renderer.", "timeout", timeout)
	io.Connect()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("renderer connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("connecting to renderer: %w", ctx.Err())
	}

	logger.Info("Connected to renderer.", "sid", io.Id())
	return &SocketIO{io: io}, nil
}

func connectError(errs []any) error {
	if len(errs) == 0 {
		return errors.New("connect_error without a reason")
	}
	if err, ok := errs[0].(error); ok && err != nil {
		return err
	}
	return fmt.Errorf("%v", errs[0])
}

func (s *SocketIO) Notify(ctx context.Context, ev Event) error {
	if err := s.io.Emit(RendererEvent, ev); err != nil {
		return fmt.Errorf("emitting %s for %s: %w", ev.Type, ev.Node, err)
	}
	return nil
}

func (s *SocketIO) Close() error {
	s.io.Disconnect()
	return nil
}
