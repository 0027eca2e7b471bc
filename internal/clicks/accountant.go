// Package clicks maintains the per-code visit counter.
//
// Accounting is fire-and-observe: a failed increment is logged and dropped,
// and must never fail or delay the resolution response. Increments flow
// through an owned worker goroutine rather than untracked go statements, so
// shutdown can drain in-flight work and failures stay visible in the logs.
package clicks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Store is the durable counter the accountant writes to. RecordClick must be
// an atomic increment on the store side; the accountant never reads the
// counter back.
type Store interface {
	RecordClick(ctx context.Context, shortCode string) error
}

const recordTimeout = 5 * time.Second

// Accountant buffers click events and applies them to the durable store.
type Accountant struct {
	store  Store
	logger *slog.Logger

	buf       chan string
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New starts the accountant's worker. bufSize bounds the number of pending
// events; 0 means a default of 1024.
func New(store Store, logger *slog.Logger, bufSize int) *Accountant {
	if bufSize <= 0 {
		bufSize = 1024
	}

	a := &Accountant{
		store:  store,
		logger: logger,
		buf:    make(chan string, bufSize),
	}

	a.wg.Add(1)
	go a.worker()

	return a
}

// Record queues a click against a code. It never blocks the caller: when the
// buffer is full the increment is applied synchronously instead, so bursts
// degrade to store latency rather than dropped counts.
func (a *Accountant) Record(shortCode string) {
	select {
	case a.buf <- shortCode:
	default:
		a.apply(shortCode)
	}
}

// Close drains the buffer and stops the worker. It is safe to call more
// than once; Record must not be called after Close.
func (a *Accountant) Close() {
	a.closeOnce.Do(func() {
		close(a.buf)
	})
	a.wg.Wait()
}

func (a *Accountant) worker() {
	defer a.wg.Done()

	for shortCode := range a.buf {
		a.apply(shortCode)
	}
}

func (a *Accountant) apply(shortCode string) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := a.store.RecordClick(ctx, shortCode); err != nil {
		a.logger.Error("failed to record click",
			slog.String("short_code", shortCode),
			slog.Any("err", err),
		)
	}
}
