package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	stdSync "sync"
	"time"

	"github.com/lib/pq"

	"github.com/alvintu/swift-ui-aws-amplify/logging"
)

// notifyChannel is the pg_notify channel the records trigger writes to.
const notifyChannel = "record_changes"

// ChangeNotification is the payload delivered for each record write.
type ChangeNotification struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Seq     uint64 `json:"seq"`
	Version int64  `json:"version"`
	Deleted bool   `json:"deleted"`
}

// ChangeHandler handles incoming change notifications.
type ChangeHandler func(n ChangeNotification)

// ChangeListener subscribes to record change notifications over
// PostgreSQL LISTEN/NOTIFY. Servers use it to wake delta pulls or fan
// changes out to connected clients without polling.
type ChangeListener struct {
	listener *pq.Listener
	logger   *logging.Logger

	mu       stdSync.Mutex
	handlers []ChangeHandler
	started  bool
	done     chan struct{}
}

// NewChangeListener creates a listener for the given connection string.
// Reconnection is handled internally with backoff between the given
// bounds.
func NewChangeListener(connectionString string, minReconnect, maxReconnect time.Duration) (*ChangeListener, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("ConnectionString is required")
	}
	if minReconnect <= 0 {
		minReconnect = 10 * time.Second
	}
	if maxReconnect <= 0 {
		maxReconnect = time.Minute
	}

	cl := &ChangeListener{
		logger: logging.Default().WithComponent(logging.Component(component)),
		done:   make(chan struct{}),
	}
	cl.listener = pq.NewListener(connectionString, minReconnect, maxReconnect, cl.connectionEvent)
	return cl, nil
}

func (cl *ChangeListener) connectionEvent(event pq.ListenerEventType, err error) {
	switch event {
	case pq.ListenerEventConnected, pq.ListenerEventReconnected:
		cl.logger.Info("listening for record changes")
	case pq.ListenerEventDisconnected:
		if err != nil {
			cl.logger.Warn("listener disconnected", "error", err.Error())
		}
	case pq.ListenerEventConnectionAttemptFailed:
		if err != nil {
			cl.logger.Warn("listener reconnect failed", "error", err.Error())
		}
	}
}

// Subscribe registers a handler for change notifications. Handlers run on
// the listener goroutine and must not block.
func (cl *ChangeListener) Subscribe(handler ChangeHandler) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.handlers = append(cl.handlers, handler)
}

// Start begins listening. It returns once the LISTEN is issued; delivery
// continues until Close or context cancellation.
func (cl *ChangeListener) Start(ctx context.Context) error {
	cl.mu.Lock()
	if cl.started {
		cl.mu.Unlock()
		return fmt.Errorf("listener already started")
	}
	cl.started = true
	cl.mu.Unlock()

	if err := cl.listener.Listen(notifyChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", notifyChannel, err)
	}

	go cl.loop(ctx)
	return nil
}

func (cl *ChangeListener) loop(ctx context.Context) {
	pingTicker := time.NewTicker(90 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cl.done:
			return
		case notification := <-cl.listener.Notify:
			// A nil notification signals a reconnect; pq re-issues the
			// LISTEN itself.
			if notification == nil {
				continue
			}
			cl.dispatch(notification.Extra)
		case <-pingTicker.C:
			if err := cl.listener.Ping(); err != nil {
				cl.logger.Warn("listener ping failed", "error", err.Error())
			}
		}
	}
}

func (cl *ChangeListener) dispatch(payload string) {
	var n ChangeNotification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		cl.logger.Warn("dropping malformed notification",
			"error", err.Error(),
			"payload", payload,
		)
		return
	}

	cl.mu.Lock()
	handlers := make([]ChangeHandler, len(cl.handlers))
	copy(handlers, cl.handlers)
	cl.mu.Unlock()

	for _, h := range handlers {
		h(n)
	}
}

// Close stops the listener and its connection.
func (cl *ChangeListener) Close() error {
	cl.mu.Lock()
	select {
	case <-cl.done:
	default:
		close(cl.done)
	}
	cl.mu.Unlock()
	return cl.listener.Close()
}
