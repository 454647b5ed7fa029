package receipt

import (
	"context"
	"io"
	"log"
	"sync"
	"time"
)

// User-facing messages emitted through the Notifier. Both failure kinds read
// the same on purpose: the remedy (retry or type the items in) is identical.
const (
	msgUnreadable = "could not read that receipt; you can still add items manually"
	msgBusy       = "still processing the previous receipt"
)

// DefaultRecognizeTimeout bounds a single recognition call. The engine can
// take seconds on a large photo; past this it is treated as a failed read.
const DefaultRecognizeTimeout = 30 * time.Second

// Notifier receives the single user-visible message for a failed or rejected
// pipeline run.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }

// Pipeline runs the linear digitization stages: decode/normalize the uploaded
// image, recognize text, extract line-item candidates, install them into the
// entry's State. Failures never escape Process: they are converted into
// exactly one notifier message and the state is left without partial results.
// Submissions are serialized; a second image while one is in flight is
// rejected (not queued) and reported through the notifier.
type Pipeline struct {
	rec      Recognizer
	notifier Notifier
	maxDim   int
	timeout  time.Duration

	mu   sync.Mutex
	busy bool
}

// NewPipeline wires a pipeline with default sizing and timeout.
func NewPipeline(rec Recognizer, notifier Notifier) *Pipeline {
	return &Pipeline{
		rec:      rec,
		notifier: notifier,
		maxDim:   DefaultMaxDim,
		timeout:  DefaultRecognizeTimeout,
	}
}

// SetRecognizeTimeout overrides the per-call recognition bound.
func (p *Pipeline) SetRecognizeTimeout(d time.Duration) {
	if d > 0 {
		p.timeout = d
	}
}

// Process digitizes one receipt image into st. It returns true when a fresh
// extraction batch was installed, false on rejection, failure, or when the
// state was reset mid-flight. No error propagates to the caller.
//
// State is captured before the slow recognition call and results are applied
// through its generation counter, so a Reset during recognition discards the
// late result instead of repopulating a stale form.
func (p *Pipeline) Process(ctx context.Context, r io.Reader, st *State) bool {
	p.mu.Lock()
	if p.busy {
		p.mu.Unlock()
		p.notifier.Notify(msgBusy)
		return false
	}
	p.busy = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.busy = false
		p.mu.Unlock()
	}()

	gen := st.Generation()

	img, err := Normalize(r, p.maxDim)
	if err != nil {
		// Image never reached: the item list stays as it was.
		log.Printf("receipt pipeline: %v", err)
		p.notifier.Notify(msgUnreadable)
		return false
	}

	rctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	text, err := p.rec.Recognize(rctx, img)
	if err != nil {
		// No partial state: the list is emptied, the user transcribes by hand.
		log.Printf("receipt pipeline: %v", err)
		st.ReplaceItems(gen, nil)
		p.notifier.Notify(msgUnreadable)
		return false
	}

	items := ExtractLineItems(text)
	if !st.ReplaceItems(gen, items) {
		log.Printf("receipt pipeline: discarding stale result (gen %d, now %d)", gen, st.Generation())
		return false
	}
	return true
}
