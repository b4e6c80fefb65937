package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"subweave/internal/bus"
	"subweave/internal/memory"
	"subweave/internal/queue"
	"subweave/internal/services"
	"subweave/internal/subtitles"
)

const threeLineSRT = `1
00:00:01,000 --> 00:00:02,500
Hello there.

2
00:00:03,000 --> 00:00:04,000
How are you feeling today?

3
00:00:05,000 --> 00:00:06,000
Fine, thanks.
`

// fakeGateway returns scripted JSON keyed by a marker substring of the
// prompt, mirroring how each phase's prompt is phrased.
type fakeGateway struct {
	mu            sync.Mutex
	structured    map[string]string
	errFor        map[string]error
	textFunc      func(model, prompt string) (string, error)
	textModels    []string
	textReasoning []bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		structured: map[string]string{
			"Extract proper nouns":        `[]`,
			"exactly 3 candidate":         `[]`,
			"translation blueprint":       `{"summary": "Two friends catch up.", "glossary": []}`,
			"Classify each subtitle line": `[]`,
		},
		errFor: map[string]error{},
		textFunc: func(model, prompt string) (string, error) {
			return "번역된 대사", nil
		},
	}
}

func (g *fakeGateway) GenerateStructured(_ context.Context, model, prompt string, target any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for marker, err := range g.errFor {
		if strings.Contains(prompt, marker) {
			return err
		}
	}
	for marker, response := range g.structured {
		if strings.Contains(prompt, marker) {
			return json.Unmarshal([]byte(response), target)
		}
	}
	return fmt.Errorf("no scripted response for prompt: %s", prompt)
}

func (g *fakeGateway) GenerateText(_ context.Context, model, prompt string, reasoning bool) (string, error) {
	g.mu.Lock()
	g.textModels = append(g.textModels, model)
	g.textReasoning = append(g.textReasoning, reasoning)
	g.mu.Unlock()
	return g.textFunc(model, prompt)
}

type fakeMemory struct {
	mu       sync.Mutex
	indexed  map[string][]subtitles.Line
	purged   []string
	indexErr error
	queryErr error
	purgeErr error
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{indexed: make(map[string][]subtitles.Line)}
}

func (m *fakeMemory) Index(_ context.Context, jobID string, lines []subtitles.Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexErr != nil {
		return m.indexErr
	}
	m.indexed[jobID] = lines
	return nil
}

func (m *fakeMemory) Query(_ context.Context, jobID, text string, topK int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return "", m.queryErr
	}
	if _, ok := m.indexed[jobID]; !ok {
		return memory.EmptyContext, nil
	}
	return "earlier line", nil
}

func (m *fakeMemory) Purge(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.purgeErr != nil {
		return m.purgeErr
	}
	m.purged = append(m.purged, jobID)
	return nil
}

type stageRecorder struct {
	mu     sync.Mutex
	stages []string
}

func (r *stageRecorder) SetProgress(_ context.Context, _, stage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
	return nil
}

func testSettings() Settings {
	return Settings{
		FastModel:      "fast-model",
		DeepModel:      "deep-model",
		BatchSize:      15,
		QueryTopK:      5,
		DefaultTone:    "neutral",
		TargetLanguage: "Korean",
	}
}

func drainEvents(sub *bus.Subscription) []bus.Event {
	var events []bus.Event
	for {
		select {
		case event := <-sub.C:
			events = append(events, event)
		default:
			return events
		}
	}
}

func TestRunThreeLineJob(t *testing.T) {
	gateway := newFakeGateway()
	mem := newFakeMemory()
	broker := bus.NewBroker()
	recorder := &stageRecorder{}
	orch := NewOrchestrator(gateway, mem, testSettings(), nil)

	job := &queue.Job{
		ID:      "job-1",
		Payload: queue.Payload{SubtitleContent: threeLineSRT, Tone: "Casual"},
	}
	sub := broker.Subscribe(job.ID)
	defer sub.Cancel()
	reporter := NewReporter(job.ID, recorder, broker, nil)

	result, err := orch.Run(context.Background(), job, reporter)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if blocks := strings.Count(result, "-->"); blocks != 3 {
		t.Fatalf("rendered %d blocks, want 3:\n%s", blocks, result)
	}
	if !strings.Contains(result, "번역된 대사") {
		t.Fatalf("result missing translated text:\n%s", result)
	}

	events := drainEvents(sub)
	if len(events) == 0 {
		t.Fatal("expected progress events on the bus")
	}
	if events[0].Type != bus.EventProgress {
		t.Fatalf("first event type = %s, want %s", events[0].Type, bus.EventProgress)
	}
	firstStage, _ := events[0].Payload.(map[string]any)["stage"].(string)
	if !strings.Contains(strings.ToLower(firstStage), "blueprint") {
		t.Fatalf("first stage = %q, want blueprint phase", firstStage)
	}

	blueprintIndex := -1
	batchIndex := -1
	for i, event := range events {
		switch event.Type {
		case bus.EventBlueprint:
			blueprintIndex = i
			blueprint, ok := event.Payload.(*Blueprint)
			if !ok {
				t.Fatalf("blueprint payload is %T", event.Payload)
			}
			if blueprint.Summary == "" {
				t.Fatal("blueprint summary is empty")
			}
		case bus.EventProgress:
			stage, _ := event.Payload.(map[string]any)["stage"].(string)
			if strings.Contains(stage, "Batch 1 of 1") && batchIndex == -1 {
				batchIndex = i
			}
		}
	}
	if blueprintIndex == -1 {
		t.Fatal("no blueprint_ready event published")
	}
	if batchIndex == -1 {
		t.Fatal("no progress event mentioning Batch 1 of 1")
	}
	if batchIndex < blueprintIndex {
		t.Fatal("batch progress published before blueprint_ready")
	}

	if len(mem.indexed["job-1"]) != 3 {
		t.Fatalf("indexed %d lines, want 3", len(mem.indexed["job-1"]))
	}
	if len(mem.purged) != 1 || mem.purged[0] != "job-1" {
		t.Fatalf("purged = %v, want [job-1]", mem.purged)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.stages) != len(eventsOfType(events, bus.EventProgress)) {
		t.Fatalf("persisted %d stages but published %d progress events",
			len(recorder.stages), len(eventsOfType(events, bus.EventProgress)))
	}
}

func eventsOfType(events []bus.Event, eventType string) []bus.Event {
	var matched []bus.Event
	for _, event := range events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

func TestRunFailsOnIndexingError(t *testing.T) {
	gateway := newFakeGateway()
	mem := newFakeMemory()
	mem.indexErr = services.Wrap(services.ErrIndexing, "memory", "upsert", "vector index unavailable", nil)
	orch := NewOrchestrator(gateway, mem, testSettings(), nil)

	job := &queue.Job{ID: "job-2", Payload: queue.Payload{SubtitleContent: threeLineSRT}}
	_, err := orch.Run(context.Background(), job, NewReporter(job.ID, nil, nil, nil))
	if err == nil {
		t.Fatal("expected error when indexing fails")
	}
	if !errors.Is(err, services.ErrIndexing) {
		t.Fatalf("error = %v, want ErrIndexing", err)
	}
}

func TestRunToleratesPurgeFailure(t *testing.T) {
	gateway := newFakeGateway()
	mem := newFakeMemory()
	mem.purgeErr = errors.New("index service down")
	orch := NewOrchestrator(gateway, mem, testSettings(), nil)

	job := &queue.Job{ID: "job-3", Payload: queue.Payload{SubtitleContent: threeLineSRT}}
	result, err := orch.Run(context.Background(), job, NewReporter(job.ID, nil, nil, nil))
	if err != nil {
		t.Fatalf("run should survive purge failure: %v", err)
	}
	if result == "" {
		t.Fatal("expected rendered result")
	}
}

func TestRunRejectsEmptyInput(t *testing.T) {
	orch := NewOrchestrator(newFakeGateway(), newFakeMemory(), testSettings(), nil)
	job := &queue.Job{ID: "job-4", Payload: queue.Payload{SubtitleContent: "   \n  "}}
	_, err := orch.Run(context.Background(), job, NewReporter(job.ID, nil, nil, nil))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestDeepTierHonoredOnDefaultSubmission(t *testing.T) {
	gateway := newFakeGateway()
	gateway.structured["Classify each subtitle line"] = `[{"line_id": 1, "tier": "deep"}, {"line_id": 2, "tier": "deep"}, {"line_id": 3, "tier": "deep"}]`
	mem := newFakeMemory()
	orch := NewOrchestrator(gateway, mem, testSettings(), nil)

	job := &queue.Job{
		ID:      "job-5",
		Payload: queue.Payload{SubtitleContent: threeLineSRT},
	}
	if _, err := orch.Run(context.Background(), job, NewReporter(job.ID, nil, nil, nil)); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, model := range gateway.textModels {
		if model != "deep-model" {
			t.Fatalf("deep-tier line translated on %s, want assigned deep tier", model)
		}
	}
	for _, reasoning := range gateway.textReasoning {
		if reasoning {
			t.Fatal("reasoning requested without thinking mode")
		}
	}
}

func TestThinkingModeRequestsReasoningOnDeepLines(t *testing.T) {
	gateway := newFakeGateway()
	gateway.structured["Classify each subtitle line"] = `[{"line_id": 2, "tier": "deep"}]`
	mem := newFakeMemory()
	orch := NewOrchestrator(gateway, mem, testSettings(), nil)

	job := &queue.Job{
		ID:      "job-6",
		Payload: queue.Payload{SubtitleContent: threeLineSRT, ThinkingMode: true},
	}
	if _, err := orch.Run(context.Background(), job, NewReporter(job.ID, nil, nil, nil)); err != nil {
		t.Fatalf("run: %v", err)
	}
	wantModels := []string{"fast-model", "deep-model", "fast-model"}
	for i, model := range gateway.textModels {
		if model != wantModels[i] {
			t.Fatalf("line %d translated on %s, want %s", i+1, model, wantModels[i])
		}
	}
	wantReasoning := []bool{false, true, false}
	for i, reasoning := range gateway.textReasoning {
		if reasoning != wantReasoning[i] {
			t.Fatalf("line %d reasoning = %v, want %v", i+1, reasoning, wantReasoning[i])
		}
	}
}

func TestLanguageNameResolution(t *testing.T) {
	cases := []struct {
		tag  string
		want string
	}{
		{"ko", "Korean"},
		{"ja", "Japanese"},
		{"!!", "!!"},
	}
	for _, tc := range cases {
		if got := languageName(tc.tag); got != tc.want {
			t.Errorf("languageName(%q) = %q, want %q", tc.tag, got, tc.want)
		}
	}
}
