package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"subweave/internal/bus"
	"subweave/internal/pipeline"
	"subweave/internal/queue"
	"subweave/internal/testsupport"
	"subweave/internal/worker"
)

type stubRunner struct {
	result string
	err    error
	delay  time.Duration
}

func (r *stubRunner) Run(ctx context.Context, job *queue.Job, reporter *pipeline.Reporter) (string, error) {
	if r.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.delay):
		}
	}
	reporter.Stage(ctx, "Translating Batch 1 of 1")
	return r.result, r.err
}

func newTestDaemon(t *testing.T, runner worker.Runner) *Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.APIBind = "127.0.0.1:0"

	store, err := queue.Open(&cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	broker := bus.NewBroker()
	pool := worker.NewPool(store, broker, runner, worker.Options{
		PollInterval: 10 * time.Millisecond,
		Policy: worker.RetryPolicy{
			MaxAttempts: 2,
			Backoff:     func(int) time.Duration { return -time.Second },
		},
	})
	d, err := New(&cfg, store, broker, pool, nil, NamedHealthCheck{
		Name:  "gateway",
		Check: HealthCheckFunc(func(context.Context) error { return nil }),
	})
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func startDaemon(t *testing.T, d *Daemon) string {
	t.Helper()
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	addr := d.APIAddr()
	if addr == "" {
		t.Fatal("daemon has no api address")
	}
	return "http://" + addr
}

func TestSubmitAndFetchJobOverAPI(t *testing.T) {
	d := newTestDaemon(t, &stubRunner{result: "rendered output"})
	base := startDaemon(t, d)

	body, _ := json.Marshal(map[string]any{
		"subtitle_content": "1\n00:00:01,000 --> 00:00:02,000\nHello\n",
		"tone":             "Casual",
	})
	resp, err := http.Post(base+"/api/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var submitted map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	jobID := submitted["job_id"]
	if jobID == "" {
		t.Fatal("no job_id in response")
	}

	deadline := time.After(3 * time.Second)
	for {
		jobResp, err := http.Get(base + "/api/jobs/" + jobID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		var view struct {
			Status string `json:"status"`
			Result string `json:"result"`
		}
		if err := json.NewDecoder(jobResp.Body).Decode(&view); err != nil {
			t.Fatalf("decode job: %v", err)
		}
		jobResp.Body.Close()
		if view.Status == "completed" {
			if view.Result != "rendered output" {
				t.Fatalf("result = %q", view.Result)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job never completed, status = %s", view.Status)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestSubmitRejectsEmptyContent(t *testing.T) {
	d := newTestDaemon(t, &stubRunner{result: "x"})
	base := startDaemon(t, d)

	resp, err := http.Post(base+"/api/jobs", "application/json", strings.NewReader(`{"subtitle_content": ""}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestJobNotFound(t *testing.T) {
	d := newTestDaemon(t, &stubRunner{result: "x"})
	base := startDaemon(t, d)

	resp, err := http.Get(base + "/api/jobs/definitely-missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestEventStreamDeliversTerminalEvent(t *testing.T) {
	// The delay keeps the job in flight long enough for the stream to
	// attach before the terminal event fires.
	d := newTestDaemon(t, &stubRunner{result: "done", delay: 500 * time.Millisecond})
	base := startDaemon(t, d)

	body, _ := json.Marshal(map[string]any{"subtitle_content": "Hello"})
	resp, err := http.Post(base+"/api/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var submitted map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&submitted)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/jobs/"+submitted["job_id"]+"/events", nil)
	stream, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer stream.Body.Close()
	if got := stream.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content type = %q", got)
	}

	sawTerminal := false
	scanner := bufio.NewScanner(stream.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			t.Fatalf("decode event %q: %v", line, err)
		}
		if event.Type == bus.EventCompleted {
			sawTerminal = true
			break
		}
		if event.Type == bus.EventFailed {
			t.Fatal("job failed unexpectedly")
		}
	}
	if !sawTerminal {
		t.Fatal("stream ended without a completed event")
	}
}

func TestStatusEndpoint(t *testing.T) {
	d := newTestDaemon(t, &stubRunner{result: "x"})
	base := startDaemon(t, d)

	resp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var status struct {
		Running bool              `json:"running"`
		Checks  map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Running {
		t.Fatal("daemon should report running")
	}
	if status.Checks["gateway"] != "ok" {
		t.Fatalf("gateway check = %q", status.Checks["gateway"])
	}
}

func TestSecondInstanceRefusesToStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.APIBind = "127.0.0.1:0"

	newInstance := func() *Daemon {
		store, err := queue.Open(&cfg)
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		broker := bus.NewBroker()
		pool := worker.NewPool(store, broker, &stubRunner{result: "x"}, worker.Options{PollInterval: 10 * time.Millisecond})
		d, err := New(&cfg, store, broker, pool, nil)
		if err != nil {
			t.Fatalf("new daemon: %v", err)
		}
		t.Cleanup(func() { _ = d.Close() })
		return d
	}

	first := newInstance()
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("start first: %v", err)
	}

	second := newInstance()
	err := second.Start(context.Background())
	if err == nil {
		t.Fatal("second instance acquired the lock")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("error = %v", err)
	}
}

func TestFailedJobStreamsFailedEvent(t *testing.T) {
	d := newTestDaemon(t, &stubRunner{err: errors.New("upstream down")})
	base := startDaemon(t, d)

	body, _ := json.Marshal(map[string]any{"subtitle_content": "Hello"})
	resp, err := http.Post(base+"/api/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var submitted map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&submitted)
	resp.Body.Close()

	deadline := time.After(5 * time.Second)
	for {
		jobResp, err := http.Get(fmt.Sprintf("%s/api/jobs/%s", base, submitted["job_id"]))
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		var view struct {
			Status   string `json:"status"`
			Attempts int    `json:"attempts"`
		}
		_ = json.NewDecoder(jobResp.Body).Decode(&view)
		jobResp.Body.Close()
		if view.Status == "failed" {
			if view.Attempts != 2 {
				t.Fatalf("attempts = %d, want 2", view.Attempts)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("job never failed, status = %s", view.Status)
		case <-time.After(20 * time.Millisecond):
		}
	}
}
