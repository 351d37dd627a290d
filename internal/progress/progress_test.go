package progress

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestTrackerConcurrentTicks(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTrackerTo(&buf, "analyze", 50)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Tick()
		}()
	}
	wg.Wait()

	if got := tr.bar.State().CurrentNum; got != 50 {
		t.Errorf("CurrentNum = %d, want 50", got)
	}
	tr.Finish(nil)
	if strings.Contains(buf.String(), "error") {
		t.Errorf("unexpected error output: %q", buf.String())
	}
}

func TestTrackerFinishError(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTrackerTo(&buf, "callgraph", 1)
	tr.Finish(errors.New("boom"))

	if !strings.Contains(buf.String(), "callgraph error: boom") {
		t.Errorf("output = %q", buf.String())
	}
}
