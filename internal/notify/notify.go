// Package notify keeps short-lived user notifications.
package notify

import (
	"sync"
	"time"
)

// DefaultTTL is how long a notice stays visible.
const DefaultTTL = 2600 * time.Millisecond

// Level classifies a notice.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice is a transient message.
type Notice struct {
	ID        uint64
	Level     Level
	Message   string
	ExpiresAt time.Time
}

// Queue holds notices until they expire.
type Queue struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	seq   uint64
	items []Notice
}

// NewQueue returns a queue whose notices live for ttl. A non-positive ttl
// uses DefaultTTL.
func NewQueue(ttl time.Duration) *Queue {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Queue{ttl: ttl, now: time.Now}
}

// Info adds an informational notice.
func (q *Queue) Info(msg string) Notice { return q.Push(LevelInfo, msg) }

// Error adds an error notice.
func (q *Queue) Error(msg string) Notice { return q.Push(LevelError, msg) }

// Push adds a notice.
func (q *Queue) Push(level Level, msg string) Notice {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	q.prune(now)
	q.seq++
	n := Notice{
		ID:        q.seq,
		Level:     level,
		Message:   msg,
		ExpiresAt: now.Add(q.ttl),
	}
	q.items = append(q.items, n)
	return n
}

// Active returns the unexpired notices, oldest first.
func (q *Queue) Active() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.prune(q.now())
	return append([]Notice(nil), q.items...)
}

func (q *Queue) prune(now time.Time) {
	i := 0
	for i < len(q.items) && !now.Before(q.items[i].ExpiresAt) {
		i++
	}
	if i > 0 {
		q.items = append(q.items[:0:0], q.items[i:]...)
	}
}
