package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/paycrest/e2e/config"
	"github.com/paycrest/e2e/services/mockserver"
	"github.com/paycrest/e2e/services/providers/brusnika"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newShared(t *testing.T) *SharedState {
	t.Helper()

	shared, err := NewMockState(&config.Configuration{
		Server: config.ServerConfiguration{Project: "harness-test"},
		Mock: config.MockConfiguration{
			Host:          "127.0.0.1",
			PublicHost:    "127.0.0.1",
			ProviderPorts: map[string]int{brusnika.Alias: 0},
		},
		Browser: config.BrowserConfiguration{Headless: true},
	})
	require.NoError(t, err)
	t.Cleanup(shared.Close)

	return shared
}

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Helper() {}

func (r *recordingLogger) Logf(format string, args ...interface{}) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func TestRace(t *testing.T) {
	shared := newShared(t)

	t.Run("clean body", func(t *testing.T) {
		tc := NewContext(context.Background(), shared, "p", t.Name())
		defer tc.close()
		assert.NoError(t, race(tc, func(tc *Context) error { return nil }))
	})

	t.Run("body error", func(t *testing.T) {
		tc := NewContext(context.Background(), shared, "p", t.Name())
		defer tc.close()
		assert.EqualError(t, race(tc, func(tc *Context) error { return errors.New("boom") }), "boom")
	})

	t.Run("background failure interrupts the body", func(t *testing.T) {
		tc := NewContext(context.Background(), shared, "p", t.Name())
		defer tc.close()

		go func() {
			time.Sleep(10 * time.Millisecond)
			tc.Fail(errors.New("callback rejected"))
		}()

		err := race(tc, func(tc *Context) error {
			<-tc.Ctx().Done()
			return tc.Ctx().Err()
		})

		var background ErrBackground
		require.True(t, errors.As(err, &background))
		assert.EqualError(t, background.Err, "callback rejected")
		assert.True(t, errors.As(context.Cause(tc.Ctx()), &background))
	})

	t.Run("failure after the last await", func(t *testing.T) {
		tc := NewContext(context.Background(), shared, "p", t.Name())
		defer tc.close()

		err := race(tc, func(tc *Context) error {
			tc.Fail(errors.New("late"))
			return nil
		})
		assert.EqualError(t, err, "background failure: late")
	})

	t.Run("panic", func(t *testing.T) {
		tc := NewContext(context.Background(), shared, "p", t.Name())
		defer tc.close()

		err := race(tc, func(tc *Context) error { panic("kaboom") })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "panic: kaboom")
	})

	t.Run("body goroutine exits", func(t *testing.T) {
		tc := NewContext(context.Background(), shared, "p", t.Name())
		defer tc.close()

		result := make(chan error, 1)
		go func() {
			result <- race(tc, func(tc *Context) error {
				runtime.Goexit()
				return nil
			})
		}()

		select {
		case err := <-result:
			assert.ErrorIs(t, err, errBodyExited)
		case <-time.After(5 * time.Second):
			t.Fatal("race did not return")
		}
	})
}

func TestContext(t *testing.T) {
	shared := newShared(t)

	t.Run("first failure wins", func(t *testing.T) {
		tc := NewContext(context.Background(), shared, "p", t.Name())
		defer tc.close()

		tc.Fail(nil)
		assert.NoError(t, tc.Err())

		tc.Fail(errors.New("first"))
		tc.Fail(errors.New("second"))
		assert.EqualError(t, tc.Err(), "first")

		select {
		case <-tc.Failed():
		default:
			t.Fatal("failed channel is open")
		}

		chapters := tc.Story.Chapters()
		require.Len(t, chapters, 1)
		assert.Equal(t, "failure", chapters[0].Name)
	})

	t.Run("goroutines report into the slot", func(t *testing.T) {
		tc := NewContext(context.Background(), shared, "p", t.Name())

		tc.Go(func(ctx context.Context) error { return context.Canceled })
		tc.Go(func(ctx context.Context) error { return errors.New("poll failed") })
		tc.close()

		assert.EqualError(t, tc.Err(), "poll failed")
	})

	t.Run("delayed jobs report into the slot", func(t *testing.T) {
		tc := NewContext(context.Background(), shared, "p", t.Name())
		defer tc.close()

		done, err := tc.After(0, func(ctx context.Context) error { return errors.New("delivery refused") })
		require.NoError(t, err)

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("job did not run")
		}
		assert.EqualError(t, tc.Err(), "delivery refused")
	})

	t.Run("secrets are unique", func(t *testing.T) {
		tc := NewContext(context.Background(), shared, "p", t.Name())
		defer tc.close()

		a, b := tc.Secret(), tc.Secret()
		assert.NotEqual(t, a, b)
		assert.True(t, strings.HasPrefix(a, "sk_"))
	})
}

func post(t *testing.T, url, secret, body string) (int, map[string]interface{}) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+secret)

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &payload))
	return res.StatusCode, payload
}

func TestProvider(t *testing.T) {
	shared := newShared(t)
	tc := NewContext(context.Background(), shared, "p", t.Name())

	instance, secret, err := tc.Provider(brusnika.Definition{})
	require.NoError(t, err)

	sim := brusnika.New(secret)
	pending := instance.Queue(sim.CreateHandler(brusnika.StatusPending))

	url := instance.URL() + "/api/v1/payments"
	body := `{"order_id": "o-1", "amount": 1000, "currency": "RUB"}`

	// another test's secret never reaches this instance
	code, payload := post(t, url, "someone-else", body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "no mock handler matched", payload["message"])
	assert.Equal(t, 1, instance.Pending())

	code, payload = post(t, url, secret, body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pending", payload["status"])
	require.NoError(t, pending.Wait(tc.Ctx()))
	assert.NoError(t, tc.Err())

	request, err := sim.RequestData()
	require.NoError(t, err)
	assert.Equal(t, "o-1", request.OrderID)

	// the queue is drained and there is no default
	post(t, url, secret, body)
	var unexpected mockserver.ErrUnexpectedRequest
	assert.True(t, errors.As(tc.Err(), &unexpected))

	names := []string{}
	for _, chapter := range tc.Story.Chapters() {
		names = append(names, chapter.Name)
	}
	assert.Contains(t, names, "provider brusnika")
	assert.Contains(t, names, "brusnika POST /api/v1/payments")
	assert.Contains(t, names, "brusnika response 200")

	server, err := shared.Mocks.Server(brusnika.Alias)
	require.NoError(t, err)
	assert.Equal(t, 1, server.Routes())
	tc.close()
	assert.Equal(t, 0, server.Routes())
}

func TestRun(t *testing.T) {
	shared := newShared(t)
	shared.Config.Server.ReportDir = t.TempDir()

	var seen *Context
	Run(t, shared, func(tc *Context) error {
		seen = tc
		tc.Chapter("step", map[string]interface{}{"amount": 100})
		return nil
	})

	require.NotNil(t, seen)
	assert.Equal(t, "harness-test", seen.Project)
	assert.ErrorIs(t, seen.Ctx().Err(), context.Canceled, "the context ends with the test")

	entries, err := os.ReadDir(shared.Config.Server.ReportDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), seen.UUID)
}

func TestStoryFlush(t *testing.T) {
	story := NewStory("TestX/sub case", "id-1")
	story.Add("request", []byte(`{"a":1}`))
	story.Add("error", errors.New("boom"))
	story.Add("wallet", map[string]interface{}{"amount": "100"})
	story.Add("func", func() {})

	log := &recordingLogger{}
	path, err := story.Flush(log, "")
	require.NoError(t, err)
	assert.Empty(t, path)
	require.Len(t, log.lines, 4)
	assert.Contains(t, log.lines[0], "request\n{\n  \"a\": 1\n}")
	assert.Contains(t, log.lines[1], "boom")

	dir := t.TempDir()
	path, err = story.Flush(log, dir)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "TestX_sub_case-id-1.json"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var written struct {
		Name     string    `json:"name"`
		Chapters []Chapter `json:"chapters"`
	}
	require.NoError(t, json.Unmarshal(raw, &written))
	assert.Equal(t, "TestX/sub case", written.Name)
	require.Len(t, written.Chapters, 4)
	assert.Equal(t, "boom", written.Chapters[1].Content)
}
