package telemetry

import (
	"bytes"
	"sync"
)

// LogBuffer keeps the most recent log output in memory for the logs endpoint.
// Once the limit is reached the oldest complete lines are discarded.
type LogBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

// NewLogBuffer creates a buffer holding at most limit bytes.
func NewLogBuffer(limit int) *LogBuffer {
	if limit <= 0 {
		limit = 1 << 20
	}
	return &LogBuffer{limit: limit}
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		cut := over
		if i := bytes.IndexByte(b.buf[over:], '\n'); i >= 0 {
			cut = over + i + 1
		}
		b.buf = append(b.buf[:0], b.buf[cut:]...)
	}
	return len(p), nil
}

// String returns a copy of the buffered output.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
