package pipestream

import (
	"errors"
	"os"
	"testing"
	"time"
)

type rec struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func newPipe(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	t.Cleanup(func() { _ = r.Close(); _ = w.Close() })
	return r, w
}

func requireClosed(t *testing.T, f *os.File) {
	t.Helper()
	if _, err := f.Read(make([]byte, 1)); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("expected read end closed, got %v", err)
	}
}

func TestCollectDecodesBackToBackObjects(t *testing.T) {
	r, w := newPipe(t)
	go func() {
		_, _ = w.WriteString(`{"name":"a","n":1}{"name":"b","n":2}` + "\n" + `{"name":"c","n":3}`)
		_ = w.Close()
	}()
	got := Collect[rec](r, Options{PollInterval: time.Second})
	if len(got) != 3 {
		t.Fatalf("got %d records: %+v", len(got), got)
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].Name != want || got[i].N != i+1 {
			t.Fatalf("record %d = %+v", i, got[i])
		}
	}
	requireClosed(t, r)
}

func TestCollectReassemblesSplitWrites(t *testing.T) {
	r, w := newPipe(t)
	go func() {
		_, _ = w.WriteString(`{"name":"sp`)
		time.Sleep(30 * time.Millisecond)
		_, _ = w.WriteString(`lit","n":7}{"name":"x"`)
		time.Sleep(30 * time.Millisecond)
		_, _ = w.WriteString(`,"n":8}`)
		_ = w.Close()
	}()
	got := Collect[rec](r, Options{PollInterval: time.Second})
	if len(got) != 2 || got[0].Name != "split" || got[1].N != 8 {
		t.Fatalf("got %+v", got)
	}
}

func TestSilentWriterEndsOnPollTimeout(t *testing.T) {
	r, _ := newPipe(t)
	start := time.Now()
	got := Collect[rec](r, Options{PollInterval: 30 * time.Millisecond})
	if len(got) != 0 {
		t.Fatalf("expected no records, got %+v", got)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("stream did not end promptly")
	}
	requireClosed(t, r)
}

func TestMalformedTailIsDroppedAtEOF(t *testing.T) {
	r, w := newPipe(t)
	go func() {
		_, _ = w.WriteString(`{"name":"ok","n":1}{"name": nope}`)
		_ = w.Close()
	}()
	got := Collect[rec](r, Options{PollInterval: time.Second})
	if len(got) != 1 || got[0].Name != "ok" {
		t.Fatalf("got %+v", got)
	}
}

func TestShapeMismatchSkipsRecord(t *testing.T) {
	r, w := newPipe(t)
	go func() {
		_, _ = w.WriteString(`{"name":"a","n":"not a number"}{"name":"b","n":2}`)
		_ = w.Close()
	}()
	got := Collect[rec](r, Options{PollInterval: time.Second})
	if len(got) != 1 || got[0].Name != "b" {
		t.Fatalf("got %+v", got)
	}
}

func TestMaxWaitBoundsTrickle(t *testing.T) {
	r, w := newPipe(t)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(5 * time.Millisecond):
				_, _ = w.WriteString(" ")
			}
		}
	}()
	start := time.Now()
	got := Collect[rec](r, Options{PollInterval: time.Second, MaxWait: 60 * time.Millisecond})
	if len(got) != 0 {
		t.Fatalf("got %+v", got)
	}
	if el := time.Since(start); el > time.Second {
		t.Fatalf("max wait not honoured: %v", el)
	}
	requireClosed(t, r)
}

func TestEarlyBreakClosesReader(t *testing.T) {
	r, w := newPipe(t)
	go func() {
		_, _ = w.WriteString(`{"name":"a"}{"name":"b"}{"name":"c"}`)
	}()
	n := 0
	for range Stream[rec](r, Options{PollInterval: time.Second}) {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("n=%d", n)
	}
	requireClosed(t, r)
}
