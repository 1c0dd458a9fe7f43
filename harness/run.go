package harness

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"testing"
	"time"
)

// drainTimeout bounds how long Run waits for a body that keeps going after a background failure
var drainTimeout = 10 * time.Second

var errBodyExited = errors.New("test body exited without returning")

// Run executes body as one test. The body races against the error slot: whichever
// fails first fails the test. The story is flushed whatever happens.
func Run(t *testing.T, shared *SharedState, body func(tc *Context) error) {
	t.Helper()

	project := "e2e"
	reportDir := ""
	if shared.Config != nil {
		project = shared.Config.Server.Project
		reportDir = shared.Config.Server.ReportDir
	}

	tc := NewContext(context.Background(), shared, project, t.Name())
	defer func() {
		if path, err := tc.Story.Flush(t, reportDir); err != nil {
			t.Logf("story not written: %v", err)
		} else if path != "" {
			t.Logf("story written to %s", path)
		}
	}()
	defer tc.close()

	if err := race(tc, body); err != nil {
		t.Error(err)
	}
}

// race runs body and returns the first failure of either the body or the error slot
func race(tc *Context, body func(tc *Context) error) error {
	done := make(chan error, 1)
	go func() {
		returned := false
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v\n%s", r, debug.Stack())
			} else if !returned {
				// runtime.Goexit, e.g. t.FailNow from a require assertion
				done <- errBodyExited
			}
		}()
		err := body(tc)
		returned = true
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			tc.Chapter("error", err.Error())
			return err
		}
		// a failure may have landed after the body's last await
		if err := tc.Err(); err != nil {
			return ErrBackground{Err: err}
		}
		return nil

	case <-tc.Failed():
		select {
		case <-done:
		case <-time.After(drainTimeout):
			tc.Chapter("body still running", drainTimeout.String())
		}
		return ErrBackground{Err: tc.Err()}
	}
}
