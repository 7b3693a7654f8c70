package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
)

// FolderChannel is the pg_notify channel carrying folder change events.
const FolderChannel = "cubby_folder_changes"

// Change event ops
const (
	OpCreated           = "created"
	OpUpdated           = "updated"
	OpDeleted           = "deleted"
	OpMembershipChanged = "membership_changed"
)

// ChangeEvent is the payload published with every folder write. It carries
// just enough for a watcher to decide relevance; watchers re-run their own
// query for actual data, they never trust the payload as a snapshot.
type ChangeEvent struct {
	Op             string   `json:"op"`
	FolderID       string   `json:"folder_id"`
	OwnerID        string   `json:"owner_id"`
	ParentID       *string  `json:"parent_id,omitempty"`
	ContributorIDs []string `json:"contributor_ids,omitempty"`
}

// subscription is one registered consumer of change events. Events are
// delivered best-effort on a buffered channel; on overflow (or listener
// reconnect) the resync flag is raised instead, telling the consumer to
// requery unconditionally. Nothing is ever silently lost.
type subscription struct {
	events chan ChangeEvent
	resync chan struct{}
}

func (s *subscription) deliver(ev ChangeEvent) {
	select {
	case s.events <- ev:
	default:
		s.raiseResync()
	}
}

func (s *subscription) raiseResync() {
	select {
	case s.resync <- struct{}{}:
	default:
	}
}

// ChangeListener holds one dedicated LISTEN connection and fans incoming
// folder change notifications out to any number of subscribers. It
// reconnects with exponential backoff on transient drops; after a
// reconnect every subscriber is told to resync, since notifications may
// have been missed while disconnected.
type ChangeListener struct {
	connString string
	logger     *slog.Logger

	mu     sync.Mutex
	subs   map[uint64]*subscription
	nextID uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewChangeListener creates a listener for the folder change channel.
// Call Start before subscribing.
func NewChangeListener(connString string, logger *slog.Logger) *ChangeListener {
	return &ChangeListener{
		connString: connString,
		logger:     logger,
		subs:       make(map[uint64]*subscription),
	}
}

// Start verifies connectivity and begins the receive loop in the
// background. The loop runs until Close is called.
func (l *ChangeListener) Start(ctx context.Context) error {
	conn, err := l.listen(ctx)
	if err != nil {
		return fmt.Errorf("start change listener: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.run(runCtx, conn)
	return nil
}

// Close stops the receive loop and waits for it to drain.
func (l *ChangeListener) Close() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
}

// Subscribe registers a consumer. The returned cancel func must be called
// when done; leaking a subscription keeps its buffers alive forever.
func (l *ChangeListener) Subscribe() (events <-chan ChangeEvent, resync <-chan struct{}, cancel func()) {
	sub := &subscription{
		events: make(chan ChangeEvent, 64),
		resync: make(chan struct{}, 1),
	}

	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = sub
	l.mu.Unlock()

	return sub.events, sub.resync, func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

func (l *ChangeListener) listen(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, l.connString)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("LISTEN %s", FolderChannel)); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	return conn, nil
}

func (l *ChangeListener) run(ctx context.Context, conn *pgx.Conn) {
	defer close(l.done)
	defer func() {
		if conn != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = conn.Close(closeCtx)
		}
	}()

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			l.logger.Warn("listen connection lost, reconnecting", "error", err)
			_ = conn.Close(ctx)
			conn = nil

			conn, err = l.reconnect(ctx)
			if err != nil {
				// Only happens when ctx was cancelled mid-backoff.
				return
			}

			// Notifications may have been missed while disconnected.
			l.resyncAll()
			continue
		}

		var ev ChangeEvent
		if err := json.Unmarshal([]byte(notification.Payload), &ev); err != nil {
			l.logger.Warn("malformed change notification", "payload", notification.Payload, "error", err)
			continue
		}

		l.mu.Lock()
		for _, sub := range l.subs {
			sub.deliver(ev)
		}
		l.mu.Unlock()
	}
}

func (l *ChangeListener) reconnect(ctx context.Context) (*pgx.Conn, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0 // retry until cancelled

	var conn *pgx.Conn
	operation := func() error {
		var err error
		conn, err = l.listen(ctx)
		if err != nil {
			l.logger.Debug("listener reconnect attempt failed", "error", err)
		}
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}

	l.logger.Info("listener reconnected", "channel", FolderChannel)
	return conn, nil
}

func (l *ChangeListener) resyncAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, sub := range l.subs {
		sub.raiseResync()
	}
}
