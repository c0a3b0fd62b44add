package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sink receives flushed batches of events.
type Sink interface {
	Write(ctx context.Context, events []Event) error
}

// LoggerConfig configures the async audit logger.
type LoggerConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// AsyncLogger implements Logger with a buffered channel and background worker.
type AsyncLogger struct {
	ch     chan Event
	sinks  []Sink
	cfg    LoggerConfig
	wg     sync.WaitGroup
	cancel context.CancelFunc
	once   sync.Once
}

// NewAsyncLogger creates and starts an async audit logger.
func NewAsyncLogger(cfg LoggerConfig, sinks ...Sink) *AsyncLogger {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 4096
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &AsyncLogger{
		ch:     make(chan Event, cfg.BufferSize),
		sinks:  sinks,
		cfg:    cfg,
		cancel: cancel,
	}

	l.wg.Add(1)
	go l.worker(ctx)

	return l
}

// Log enqueues an audit event. Never blocks the caller; drops if the buffer
// is full.
func (l *AsyncLogger) Log(ctx context.Context, event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	if event.Source == "" {
		event.Source = SourceFromContext(ctx)
	}

	select {
	case l.ch <- event:
	default:
		slog.Warn("audit buffer full, dropping event", "action", event.Action)
	}
}

// Close flushes remaining events and stops the worker. It is safe to call
// more than once.
func (l *AsyncLogger) Close() error {
	l.once.Do(func() {
		l.cancel()
		l.wg.Wait()
		l.flush(l.drainAll())
	})
	return nil
}

func (l *AsyncLogger) worker(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.FlushInterval)
	defer ticker.Stop()

	var batch []Event

	for {
		select {
		case <-ctx.Done():
			batch = append(batch, l.drainAll()...)
			l.flush(batch)
			return

		case e := <-l.ch:
			batch = append(batch, e)
			if len(batch) >= l.cfg.BatchSize {
				l.flush(batch)
				batch = nil
			}

		case <-ticker.C:
			if len(batch) > 0 {
				l.flush(batch)
				batch = nil
			}
		}
	}
}

func (l *AsyncLogger) flush(events []Event) {
	if len(events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, s := range l.sinks {
		if err := s.Write(ctx, events); err != nil {
			slog.Error("audit flush failed", "error", err, "count", len(events))
		}
	}
}

func (l *AsyncLogger) drainAll() []Event {
	var events []Event
	for {
		select {
		case e := <-l.ch:
			events = append(events, e)
		default:
			return events
		}
	}
}
