package notify

import (
	"context"
	"sync"

	"github.com/example/gym-sniper/internal/logger"
)

type job struct {
	success bool
	notice  Notice
	reason  string
}

// Dispatcher hands notifications to a pool of workers so slow delivery never
// holds up a reservation loop. When the buffer is full the notification is
// dropped and logged.
type Dispatcher struct {
	size int
	jobs chan job
	next Notifier
	log  logger.Logger
	wg   sync.WaitGroup
}

// NewDispatcher creates a pool of size workers delivering to next.
func NewDispatcher(size int, next Notifier, l logger.Logger) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	return &Dispatcher{
		size: size,
		jobs: make(chan job, size*4),
		next: OrNop(next),
		log:  logger.OrNop(l),
	}
}

// Start launches the workers. They exit once ctx is done and the queue is drained,
// or when Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.size; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case j, ok := <-d.jobs:
			if !ok {
				return
			}
			d.deliver(j)
		case <-ctx.Done():
			for {
				select {
				case j, ok := <-d.jobs:
					if !ok {
						return
					}
					d.deliver(j)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(j job) {
	// Delivery outlives the reservation's context.
	ctx := context.Background()
	if j.success {
		d.next.NotifySuccess(ctx, j.notice)
		return
	}
	d.next.NotifyFailure(ctx, j.notice, j.reason)
}

func (d *Dispatcher) enqueue(j job) {
	select {
	case d.jobs <- j:
	default:
		d.log.Warning("notification queue full, dropping notice for %s", j.notice.Name)
	}
}

func (d *Dispatcher) NotifySuccess(_ context.Context, n Notice) {
	d.enqueue(job{success: true, notice: n})
}

func (d *Dispatcher) NotifyFailure(_ context.Context, n Notice, reason string) {
	d.enqueue(job{notice: n, reason: reason})
}

// Close stops accepting work and waits for queued notifications to be
// delivered. Notices queued after the workers stopped are delivered here.
func (d *Dispatcher) Close() {
	close(d.jobs)
	d.wg.Wait()
	for j := range d.jobs {
		d.deliver(j)
	}
}
