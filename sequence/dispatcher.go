package sequence

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrStopped is returned when posting to a closed Dispatcher.
var ErrStopped = errors.New("dispatcher stopped")

// Dispatcher runs functions one at a time on its own goroutine.
//
// Every write to the job and every listener notification goes through it.
// Do must not be called from a function running on the dispatcher.
type Dispatcher struct {
	cmds    chan func()
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewDispatcher starts a Dispatcher; stop it with Close.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		cmds:    make(chan func(), 256),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.stopped)
	for {
		select {
		case fn := <-d.cmds:
			fn()
		case <-d.done:
			for {
				select {
				case fn := <-d.cmds:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Post queues fn without waiting for it.
func (d *Dispatcher) Post(fn func()) error {
	select {
	case <-d.done:
		return ErrStopped
	default:
	}
	select {
	case <-d.done:
		return ErrStopped
	case d.cmds <- fn:
		return nil
	}
}

// Do runs fn and waits for it to return.
func (d *Dispatcher) Do(fn func()) error {
	ch := make(chan struct{})
	err := d.Post(func() {
		defer close(ch)
		fn()
	})
	if err != nil {
		return err
	}
	select {
	case <-ch:
		return nil
	case <-d.stopped:
		select {
		case <-ch:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Close stops the dispatcher after running what is already queued.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.done) })
	<-d.stopped
}
