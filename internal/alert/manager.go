// Package alert delivers important operational events (failed orders, a
// degraded exchange) to an out-of-band notifier without blocking callers.
package alert

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

type Alerter interface {
	Important(event string, fields map[string]string)
}

const (
	defaultQueueSize     = 64
	defaultNotifyTimeout = 20 * time.Second
)

type ManagerOptions struct {
	QueueSize     int
	NotifyTimeout time.Duration
	Now           func() time.Time
}

// Manager queues alerts and sends them from one goroutine. When the queue
// is full the alert is dropped and counted.
type Manager struct {
	source   string
	product  string
	notifier Notifier
	timeout  time.Duration
	now      func() time.Time

	queue   chan event
	stop    chan struct{}
	done    chan struct{}
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

type event struct {
	name   string
	fields map[string]string
}

// NewManager returns nil when notifier is nil; a nil *Manager discards
// every alert.
func NewManager(source, product string, notifier Notifier, opts ManagerOptions) *Manager {
	if notifier == nil {
		return nil
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	timeout := opts.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	m := &Manager{
		source:   source,
		product:  product,
		notifier: notifier,
		timeout:  timeout,
		now:      now,
		queue:    make(chan event, size),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go m.loop()
	return m
}

func (m *Manager) Important(name string, fields map[string]string) {
	if m == nil {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- event{name: name, fields: cloneFields(fields)}:
	default:
		total := m.dropped.Add(1)
		log.Printf(
			"level=WARN event=alert_queue_dropped target_event=%q dropped_total=%d queue_cap=%d",
			name,
			total,
			cap(m.queue),
		)
	}
}

// Dropped reports how many alerts were discarded because the queue was full.
func (m *Manager) Dropped() uint64 {
	if m == nil {
		return 0
	}
	return m.dropped.Load()
}

// Close stops accepting alerts and waits for queued ones to be sent.
func (m *Manager) Close(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.stop)
	}
	m.mu.Unlock()

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) loop() {
	defer close(m.done)
	for {
		select {
		case ev := <-m.queue:
			m.send(ev)
		case <-m.stop:
			for {
				select {
				case ev := <-m.queue:
					m.send(ev)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) send(ev event) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := m.notifier.Notify(ctx, m.buildMessage(ev)); err != nil {
		log.Printf("level=ERROR event=alert_notify_failed target_event=%q err=%q", ev.name, err.Error())
	}
}

func (m *Manager) buildMessage(ev event) string {
	lines := []string{
		"[" + m.source + "] important",
		"time: " + m.now().UTC().Format(time.RFC3339),
		"product: " + m.product,
		"event: " + ev.name,
	}
	keys := make([]string, 0, len(ev.fields))
	for k := range ev.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, k+": "+ev.fields[k])
	}
	return strings.Join(lines, "\n")
}

func cloneFields(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
