package portio

import (
	"context"
	"io"
	"log"
	"sync"

	"github.com/openproto/ecnode/etf"
)

// Handler processes one received frame's payload and returns the bytes
// of the reply frame's payload, or an error to drop the request with no
// reply.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// Driver implements the stdio two-thread pattern: one goroutine reads
// framed inbound terms and spawns a worker goroutine per request
// (bounded by maxInFlight), and one goroutine drains a bounded channel
// of reply buffers and writes them to the output stream in the order the
// channel delivers them, mirroring the single-writer channel-drain
// discipline of an event-notification server.
type Driver struct {
	r io.Reader
	w io.Writer

	replies chan []byte
	sem     chan struct{}

	wg sync.WaitGroup
}

// NewDriver builds a Driver reading framed requests from r and writing
// framed replies to w. maxInFlight bounds the number of concurrently
// running handler goroutines; replyBuffer bounds the pending-reply
// channel depth.
func NewDriver(r io.Reader, w io.Writer, maxInFlight, replyBuffer int) *Driver {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	if replyBuffer <= 0 {
		replyBuffer = 1
	}
	return &Driver{
		r:       r,
		w:       w,
		replies: make(chan []byte, replyBuffer),
		sem:     make(chan struct{}, maxInFlight),
	}
}

// Run reads frames until Recv reports Interrupted (stdin closed) or ctx
// is canceled, dispatching each to handle in its own goroutine. It
// blocks until the writer goroutine has drained every in-flight reply.
func (d *Driver) Run(ctx context.Context, handle Handler) error {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		d.writeLoop()
	}()

	var readErr error
readLoop:
	for {
		select {
		case <-ctx.Done():
			readErr = ctx.Err()
			break readLoop
		default:
		}

		payload, err := Recv(d.r)
		if err != nil {
			if !etf.IsInterrupted(err) {
				readErr = err
			}
			break readLoop
		}

		d.sem <- struct{}{}
		d.wg.Add(1)
		go func(payload []byte) {
			defer d.wg.Done()
			defer func() { <-d.sem }()
			reply, err := handle(ctx, payload)
			if err != nil {
				log.Printf("portio: handler error: %v", err)
				return
			}
			d.replies <- reply
		}(payload)
	}

	d.wg.Wait()
	close(d.replies)
	<-writerDone
	return readErr
}

func (d *Driver) writeLoop() {
	for reply := range d.replies {
		if err := Send(d.w, reply); err != nil {
			log.Printf("portio: write error: %v", err)
			return
		}
	}
}
