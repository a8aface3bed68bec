// Package ctrl holds the hardware controllers. Each controller owns one
// device or sysfs path and serialises its commands through a single task.
package ctrl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/rogd/internal/device"
	"github.com/smazurov/rogd/internal/events"
	"github.com/smazurov/rogd/internal/metrics"
)

// queueSize bounds how many commands may wait on one controller.
const queueSize = 16

// Controller is the lifecycle every hardware controller shares.
type Controller interface {
	Name() string
	// Reload re-applies persisted state to the hardware. Called once at startup.
	Reload(ctx context.Context) error
	// Start spawns the controller's task(s). They exit when ctx is cancelled.
	Start(ctx context.Context, wg *sync.WaitGroup)
}

// Publisher receives outbound notifications. *events.Bus satisfies it.
type Publisher interface {
	Publish(ev events.Event) error
}

type request[T any] struct {
	cmd    T
	result chan error
}

// queue is a FIFO command channel drained by one goroutine.
type queue[T any] struct {
	name string
	ch   chan request[T]
	done chan struct{}
}

func newQueue[T any](name string) *queue[T] {
	return &queue[T]{
		name: name,
		ch:   make(chan request[T], queueSize),
		done: make(chan struct{}),
	}
}

// submit enqueues cmd and waits for its result.
func (q *queue[T]) submit(ctx context.Context, cmd T) error {
	req := request[T]{cmd: cmd, result: make(chan error, 1)}

	select {
	case <-q.done:
		return fmt.Errorf("%s: %w", q.name, ErrStopped)
	default:
	}

	select {
	case q.ch <- req:
	case <-q.done:
		return fmt.Errorf("%s: %w", q.name, ErrStopped)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.result:
		return err
	case <-q.done:
		select {
		case err := <-req.result:
			return err
		default:
			return fmt.Errorf("%s: %w", q.name, ErrStopped)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// serve runs handle for every queued command until ctx is cancelled.
func (q *queue[T]) serve(ctx context.Context, wg *sync.WaitGroup, logger *slog.Logger, handle func(T) error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(q.done)
		logger.Debug("Command task started", "controller", q.name)

		for {
			select {
			case <-ctx.Done():
				logger.Debug("Command task stopped", "controller", q.name)
				return
			case req := <-q.ch:
				err := handle(req.cmd)
				metrics.ObserveCommand(q.name, err)
				if err != nil {
					logger.Warn("Command failed", "controller", q.name, "command", fmt.Sprintf("%T", req.cmd), "error", err)
				}
				req.result <- err
			}
		}
	}()
}

// poll calls fn every interval until ctx is cancelled.
func poll(ctx context.Context, wg *sync.WaitGroup, interval time.Duration, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// notify publishes ev. Failures are logged only.
func notify(logger *slog.Logger, pub Publisher, ev events.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ev); err != nil {
		logger.Warn("Failed to publish notification", "type", ev.Type(), "error", err)
	}
}

// absorbTimeout turns a transfer timeout into success.
func absorbTimeout(logger *slog.Logger, controller string, err error) error {
	if err == nil || !device.IsTimeout(err) {
		return err
	}
	metrics.IncTransferTimeout(controller)
	logger.Debug("Device transfer timed out", "controller", controller, "error", err)
	return nil
}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}
