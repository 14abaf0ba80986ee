package database

import (
	"context"
	"sync"
	"time"

	"api-gateway/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultBufferSize = 1024
	defaultBatchSize  = 64
	flushInterval     = time.Second
)

// AccessLogWriter persists access log rows off the request path. Rows are
// queued on a bounded buffer and inserted in batches; when the buffer is
// full new rows are dropped rather than blocking the request.
type AccessLogWriter struct {
	db      *gorm.DB
	logger  *zap.Logger
	entries chan models.AccessLog
	batch   int

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAccessLogWriter starts a writer goroutine. Call Close to flush and stop it.
func NewAccessLogWriter(db *gorm.DB, bufferSize int, logger *zap.Logger) *AccessLogWriter {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &AccessLogWriter{
		db:      db,
		logger:  logger,
		entries: make(chan models.AccessLog, bufferSize),
		batch:   defaultBatchSize,
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Record queues entry and reports whether it was accepted.
func (w *AccessLogWriter) Record(entry models.AccessLog) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}

	select {
	case w.entries <- entry:
		return true
	default:
		w.logger.Warn("access log buffer full, dropping entry", zap.String("request_id", entry.RequestID))
		return false
	}
}

// Close stops accepting entries and waits until queued ones are written or ctx ends.
func (w *AccessLogWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.entries)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *AccessLogWriter) run() {
	defer close(w.done)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	pending := make([]models.AccessLog, 0, w.batch)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := w.db.CreateInBatches(&pending, w.batch).Error; err != nil {
			w.logger.Error("persist access log", zap.Int("rows", len(pending)), zap.Error(err))
		}
		pending = pending[:0]
	}

	for {
		select {
		case entry, ok := <-w.entries:
			if !ok {
				flush()
				return
			}
			pending = append(pending, entry)
			if len(pending) >= w.batch {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
