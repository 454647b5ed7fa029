package receipt

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"
)

// fakeRecognizer returns canned text or an error, optionally blocking until
// released so tests can interleave a reset with an in-flight recognition.
type fakeRecognizer struct {
	text    string
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeRecognizer) Recognize(ctx context.Context, _ image.Image) (string, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", &RecognitionError{Err: ctx.Err()}
		}
	}
	return f.text, f.err
}

type countingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *countingNotifier) Notify(msg string) {
	n.mu.Lock()
	n.msgs = append(n.msgs, msg)
	n.mu.Unlock()
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

func TestProcessInstallsExtraction(t *testing.T) {
	notes := &countingNotifier{}
	p := NewPipeline(&fakeRecognizer{text: "Milk 2.50\nBread 1.20"}, notes)
	st := NewState()
	if !p.Process(context.Background(), encodePNG(t, 100, 100), st) {
		t.Fatalf("process failed")
	}
	if got := st.Items(); len(got) != 2 {
		t.Fatalf("expected 2 items got %+v", got)
	}
	if st.ReportedTotal() != 370 {
		t.Fatalf("expected total guess 370 got %d", st.ReportedTotal())
	}
	if notes.count() != 0 {
		t.Fatalf("unexpected notifications %v", notes.msgs)
	}
}

func TestProcessRecognitionFailure(t *testing.T) {
	notes := &countingNotifier{}
	p := NewPipeline(&fakeRecognizer{err: &RecognitionError{Err: errors.New("engine down")}}, notes)
	st := NewState()
	if p.Process(context.Background(), encodePNG(t, 100, 100), st) {
		t.Fatalf("process must report failure")
	}
	if len(st.Items()) != 0 {
		t.Fatalf("no partial state allowed after recognition failure")
	}
	if notes.count() != 1 {
		t.Fatalf("exactly one notification expected, got %v", notes.msgs)
	}
}

func TestProcessDecodeFailureLeavesStateAlone(t *testing.T) {
	notes := &countingNotifier{}
	p := NewPipeline(&fakeRecognizer{}, notes)
	st := NewState()
	id := st.AddItem()
	if p.Process(context.Background(), errorReader{}, st) {
		t.Fatalf("process must report failure")
	}
	if items := st.Items(); len(items) != 1 || items[0].ID != id {
		t.Fatalf("image never reached, items must be unchanged: %+v", items)
	}
	if notes.count() != 1 {
		t.Fatalf("exactly one notification expected, got %v", notes.msgs)
	}
}

type errorReader struct{}

func (errorReader) Read([]byte) (int, error) { return 0, errors.New("broken upload") }

func TestProcessRejectsOverlappingSubmission(t *testing.T) {
	notes := &countingNotifier{}
	rec := &fakeRecognizer{text: "Milk 2.50", started: make(chan struct{}), release: make(chan struct{})}
	p := NewPipeline(rec, notes)
	st := NewState()

	done := make(chan bool, 1)
	go func() { done <- p.Process(context.Background(), encodePNG(t, 100, 100), st) }()
	<-rec.started

	other := NewState()
	if p.Process(context.Background(), encodePNG(t, 100, 100), other) {
		t.Fatalf("second submission while busy must be rejected")
	}
	if notes.count() != 1 || notes.msgs[0] != msgBusy {
		t.Fatalf("expected busy notification, got %v", notes.msgs)
	}

	close(rec.release)
	if !<-done {
		t.Fatalf("first submission should still complete")
	}
}

func TestProcessDiscardsStaleResultAfterReset(t *testing.T) {
	notes := &countingNotifier{}
	rec := &fakeRecognizer{text: "Milk 2.50", started: make(chan struct{}), release: make(chan struct{})}
	p := NewPipeline(rec, notes)
	st := NewState()

	done := make(chan bool, 1)
	go func() { done <- p.Process(context.Background(), encodePNG(t, 100, 100), st) }()
	<-rec.started

	st.Reset()
	close(rec.release)
	if <-done {
		t.Fatalf("result from before the reset must be discarded")
	}
	if len(st.Items()) != 0 || st.ReportedTotal() != 0 {
		t.Fatalf("stale recognition repopulated a reset form: %+v", st.Items())
	}
}

func TestProcessRecognitionTimeout(t *testing.T) {
	notes := &countingNotifier{}
	rec := &fakeRecognizer{text: "Milk 2.50", release: make(chan struct{})} // never released
	p := NewPipeline(rec, notes)
	p.SetRecognizeTimeout(20 * time.Millisecond)
	st := NewState()
	if p.Process(context.Background(), encodePNG(t, 100, 100), st) {
		t.Fatalf("timed-out recognition must fail")
	}
	if notes.count() != 1 {
		t.Fatalf("exactly one notification expected, got %v", notes.msgs)
	}
}
