package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/job-sieve/internal/ai"
)

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type generateCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

type fakeModels struct {
	mu     sync.Mutex
	queue  []fakeResponse
	calls  []generateCall
	embeds []string
	vector []float32
	embErr error
}

func (f *fakeModels) enqueue(resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeResponse{resp: resp, err: err})
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, generateCall{model: model, contents: contents, config: config})
	if len(f.queue) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := f.queue[0]
	f.queue = f.queue[1:]
	return res.resp, res.err
}

func (f *fakeModels) EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range contents {
		for _, p := range c.Parts {
			f.embeds = append(f.embeds, p.Text)
		}
	}
	if f.embErr != nil {
		return nil, f.embErr
	}
	return &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{{Values: f.vector}}}, nil
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	original := sleep
	sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	t.Cleanup(func() { sleep = original })
	return &delays
}

func newTestGenerator(models modelsAPI, retries int) *Generator {
	return &Generator{
		models:     models,
		model:      "gemini-pro",
		maxRetries: retries,
		baseDelay:  time.Second,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		logger:     zap.NewNop(),
	}
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	delays := noSleep(t)

	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"})
	models.enqueue(textResponse("retry ok"), nil)

	g := newTestGenerator(models, 2)

	output, err := g.GenerateContent(context.Background(), "system", "message")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if output != "retry ok" {
		t.Fatalf("unexpected output: %q", output)
	}
	if len(models.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.calls))
	}
	if len(*delays) != 1 || (*delays)[0] != time.Second {
		t.Fatalf("unexpected backoff delays: %v", *delays)
	}

	for _, call := range models.calls {
		if call.model != "gemini-pro" {
			t.Fatalf("unexpected model %q", call.model)
		}
		if call.config == nil || call.config.SystemInstruction == nil {
			t.Fatalf("expected system instruction to be set")
		}
		if got := call.config.SystemInstruction.Parts[0].Text; got != "system" {
			t.Fatalf("unexpected system instruction: %q", got)
		}
		if got := call.contents[0].Parts[0].Text; got != "message" {
			t.Fatalf("unexpected prompt: %q", got)
		}
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	delays := noSleep(t)

	models := &fakeModels{}
	tempErr := genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
	models.enqueue(nil, tempErr)
	models.enqueue(nil, tempErr)
	models.enqueue(nil, tempErr)

	g := newTestGenerator(models, 3)

	_, err := g.GenerateContent(context.Background(), "sys", "msg")
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected wrapped api error, got %v", err)
	}
	if len(models.calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(models.calls))
	}
	if len(*delays) != 2 || (*delays)[0] != time.Second || (*delays)[1] != 2*time.Second {
		t.Fatalf("expected exponential backoff, got %v", *delays)
	}
}

func TestGeneratorDoesNotRetryClientErrors(t *testing.T) {
	noSleep(t)

	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"})

	g := newTestGenerator(models, 3)

	if _, err := g.GenerateContent(context.Background(), "", "msg"); err == nil {
		t.Fatal("expected error")
	}
	if len(models.calls) != 1 {
		t.Fatalf("expected a single call, got %d", len(models.calls))
	}
	if models.calls[0].config.SystemInstruction != nil {
		t.Fatalf("expected no system instruction for empty system prompt")
	}
}

func TestGeneratorQuotaDelay(t *testing.T) {
	tests := []struct {
		name    string
		message string
		calls   int
		delay   time.Duration
	}{
		{name: "short delay is honored", message: "Quota exceeded. Please retry in 3.5s.", calls: 2, delay: 3500 * time.Millisecond},
		{name: "long delay gives up", message: "Quota exceeded. Please retry in 54s.", calls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delays := noSleep(t)

			models := &fakeModels{}
			models.enqueue(nil, genai.APIError{Code: http.StatusTooManyRequests, Message: tt.message})
			models.enqueue(textResponse("{}"), nil)

			g := newTestGenerator(models, 3)
			_, _ = g.GenerateContent(context.Background(), "sys", "msg")

			if len(models.calls) != tt.calls {
				t.Fatalf("expected %d calls, got %d", tt.calls, len(models.calls))
			}
			if tt.delay > 0 && (len(*delays) != 1 || (*delays)[0] != tt.delay) {
				t.Fatalf("expected delay %v, got %v", tt.delay, *delays)
			}
		})
	}
}

func TestGeneratorJoinsParts(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(textResponse(" first ", "", "second"), nil)

	output, err := newTestGenerator(models, 1).GenerateContent(context.Background(), "", "msg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output != "first\nsecond" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestGeneratorEmptyResponse(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(&genai.GenerateContentResponse{}, nil)

	_, err := newTestGenerator(models, 1).GenerateContent(context.Background(), "", "msg")
	if !errors.Is(err, ai.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestGeneratorRejectsEmptyPrompt(t *testing.T) {
	models := &fakeModels{}
	if _, err := newTestGenerator(models, 1).GenerateContent(context.Background(), "sys", "  "); err == nil {
		t.Fatal("expected error for empty prompt")
	}
	if len(models.calls) != 0 {
		t.Fatalf("expected no calls")
	}
}

func TestNewGeneratorDefaults(t *testing.T) {
	g := newGenerator(&fakeModels{}, GeneratorOptions{}, nil)
	if g.Model() != DefaultModel {
		t.Fatalf("expected default model, got %q", g.Model())
	}
	if g.maxRetries != DefaultMaxRetries {
		t.Fatalf("expected default retries, got %d", g.maxRetries)
	}
	if g.limiter.Limit() != rate.Inf {
		t.Fatalf("expected unlimited rate")
	}

	limited := newGenerator(&fakeModels{}, GeneratorOptions{RequestsPerMinute: 20}, nil)
	if limited.limiter.Limit() != rate.Every(3*time.Second) {
		t.Fatalf("unexpected limit %v", limited.limiter.Limit())
	}
}

func TestEmbedder(t *testing.T) {
	models := &fakeModels{vector: []float32{0.1, 0.2}}
	e := newEmbedder(models, "")

	if e.Name() != "gemini:"+DefaultEmbeddingModel {
		t.Fatalf("unexpected name %q", e.Name())
	}

	vec, err := e.Embed(context.Background(), " hello ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 2 || vec[1] != 0.2 {
		t.Fatalf("unexpected vector %v", vec)
	}
	if len(models.embeds) != 1 || models.embeds[0] != "hello" {
		t.Fatalf("unexpected embed input %v", models.embeds)
	}

	models.embErr = errors.New("boom")
	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error")
	}

	models.embErr = nil
	models.vector = nil
	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for empty embedding")
	}
}
