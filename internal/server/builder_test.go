package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"llmgate/internal/config"
	"llmgate/internal/events"
	"llmgate/internal/limits"
	"llmgate/internal/upstream"
	"llmgate/internal/usage"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const testToken = "ccr_test_token"

// stubUpstream answers the OpenAI surface at /chat/completions, the
// Anthropic surface at /v1/messages, and an OpenAI-shaped body behind a
// declared-Anthropic base at /mismatch/v1/messages.
type stubUpstream struct {
	*httptest.Server

	mu       sync.Mutex
	lastAuth string
}

func (s *stubUpstream) LastAuth() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth
}

func newStubUpstream(t *testing.T) *stubUpstream {
	t.Helper()
	stub := &stubUpstream{}
	stub.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		stub.lastAuth = r.Header.Get("Authorization")
		stub.mu.Unlock()

		body, _ := io.ReadAll(r.Body)
		streaming := gjson.GetBytes(body, "stream").Bool()

		switch r.URL.Path {
		case "/chat/completions", "/mismatch/v1/messages":
			if streaming {
				w.Header().Set("Content-Type", "text/event-stream")
				w.Write([]byte("data: {\"id\":\"chatcmpl-1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":\"\"}}]}\n\n"))
				w.Write([]byte("data: {\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"hi\"}}]}\n\n"))
				w.Write([]byte("data: {\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}],\"usage\":{\"prompt_tokens\":3,\"completion_tokens\":1}}\n\n"))
				w.Write([]byte("data: [DONE]\n\n"))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"id": "chatcmpl-1",
				"object": "chat.completion",
				"model": "gpt-test",
				"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello"}, "finish_reason": "stop"}],
				"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
			}`))
		case "/v1/messages":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"id": "msg_ant",
				"type": "message",
				"role": "assistant",
				"model": "claude-x",
				"content": [{"type": "text", "text": "from-anthropic"}],
				"stop_reason": "end_turn",
				"usage": {"input_tokens": 4, "output_tokens": 2}
			}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(stub.Close)
	return stub
}

type testEnv struct {
	engine  http.Handler
	stub    *stubUpstream
	ledger  usage.Ledger
	tracker *usage.Tracker
}

func newTestEnv(t *testing.T, withTracker bool) *testEnv {
	t.Helper()
	stub := newStubUpstream(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	disabled := false
	retryInit := int64(1)
	retryMax := int64(2)
	require.NoError(t, config.Save(path, &config.Settings{
		ForwardToken:        testToken,
		EnableRetryFallback: true,
		RetryInitialMS:      &retryInit,
		RetryMaxMS:          &retryMax,
		Backup:              config.BackupConfig{Enabled: &disabled},
		Upstreams: []config.Upstream{
			{ID: "stub", Endpoints: []string{stub.URL}, APIKey: "sk-test"},
			{ID: "confused", Endpoints: []string{stub.URL + "/mismatch"}, APIStyle: "anthropic", APIKey: "sk-test"},
			{ID: "broken", Endpoints: []string{stub.URL + "/broken"}, APIKey: "sk-test"},
		},
		Models: []config.ModelCfg{
			{ID: "test-model", Provider: "openai", UpstreamID: "stub"},
			{
				ID: "dual",
				Routes: []config.ModelRoute{
					{Provider: "openai", UpstreamID: "stub", Priority: 10},
					{Provider: "anthropic", UpstreamID: "stub", Priority: 1},
				},
			},
			{ID: "confused-model", Provider: "anthropic", UpstreamID: "confused"},
			{
				ID: "flaky",
				Routes: []config.ModelRoute{
					{Provider: "openai", UpstreamID: "broken", Priority: 10},
					{Provider: "openai", UpstreamID: "stub", Priority: 1},
				},
			},
		},
	}))

	mgr, err := config.NewManager(path)
	require.NoError(t, err)

	ledger, err := usage.NewFileLedger(filepath.Join(dir, "data"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	env := &testEnv{stub: stub, ledger: ledger}
	deps := Dependencies{
		Config: mgr,
		Client: upstream.NewClient(""),
		Limits: limits.NewManager(nil),
		Ledger: ledger,
		Hub:    events.NewHub(),
	}
	if withTracker {
		env.tracker = usage.NewTracker(ledger, nil)
		env.tracker.Start()
		deps.Tracker = env.tracker
	}
	env.engine = BuildEngine(deps)
	return env
}

func testEngine(t *testing.T) http.Handler {
	return newTestEnv(t, false).engine
}

func do(engine http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func fwdAuth(extra map[string]string) map[string]string {
	h := map[string]string{"x-ccr-forward-token": testToken}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

func TestHealthAndModels(t *testing.T) {
	engine := testEngine(t)

	w := do(engine, "GET", "/health", "", nil)
	require.Equal(t, 200, w.Code)
	require.Equal(t, "ok", gjson.Get(w.Body.String(), "status").String())

	w = do(engine, "GET", "/v1/models", "", nil)
	require.Equal(t, 200, w.Code)
	require.Equal(t, "test-model", gjson.Get(w.Body.String(), "data.0.id").String())

	w = do(engine, "GET", "/v1/models/nope", "", nil)
	require.Equal(t, 404, w.Code)
	require.Equal(t, "model_not_found", gjson.Get(w.Body.String(), "error.type").String())
}

func TestChatCompletionsUnary(t *testing.T) {
	engine := testEngine(t)

	w := do(engine, "POST", "/v1/chat/completions",
		`{"model":"test-model","messages":[{"role":"user","content":"hi"}]}`, fwdAuth(nil))
	require.Equal(t, 200, w.Code)
	out := gjson.Parse(w.Body.String())
	require.Equal(t, "hello", out.Get("choices.0.message.content").String())
	require.Equal(t, int64(7), out.Get("usage.total_tokens").Int())
}

func TestChatCompletionsStreaming(t *testing.T) {
	engine := testEngine(t)

	w := do(engine, "POST", "/v1/chat/completions",
		`{"model":"test-model","messages":[{"role":"user","content":"hi"}],"stream":true}`, fwdAuth(nil))
	require.Equal(t, 200, w.Code)
	body := w.Body.String()
	require.Contains(t, body, `"content":"hi"`)
	require.Contains(t, body, "data: [DONE]")
}

func TestMessagesTranslatesToOpenAIUpstream(t *testing.T) {
	engine := testEngine(t)

	w := do(engine, "POST", "/v1/messages",
		`{"model":"test-model","max_tokens":100,"messages":[{"role":"user","content":"hi"}]}`, fwdAuth(nil))
	require.Equal(t, 200, w.Code)
	out := gjson.Parse(w.Body.String())
	require.Equal(t, "msg_chatcmpl-1", out.Get("id").String())
	require.Equal(t, "hello", out.Get("content.0.text").String())
	require.Equal(t, "end_turn", out.Get("stop_reason").String())
}

func TestForwardingRequiresCredentials(t *testing.T) {
	engine := testEngine(t)

	w := do(engine, "POST", "/v1/chat/completions",
		`{"model":"test-model","messages":[{"role":"user","content":"hi"}]}`, nil)
	require.Equal(t, 401, w.Code)
	require.Equal(t, "unauthorized", gjson.Get(w.Body.String(), "error.type").String())
}

func TestCredentialResolution(t *testing.T) {
	t.Run("gateway token unlocks the configured key", func(t *testing.T) {
		env := newTestEnv(t, false)
		w := do(env.engine, "POST", "/v1/chat/completions",
			`{"model":"test-model","messages":[{"role":"user","content":"hi"}]}`, fwdAuth(nil))
		require.Equal(t, 200, w.Code)
		require.Equal(t, "Bearer sk-test", env.stub.LastAuth())
	})

	t.Run("caller token passes through untouched", func(t *testing.T) {
		env := newTestEnv(t, false)
		w := do(env.engine, "POST", "/v1/chat/completions",
			`{"model":"test-model","messages":[{"role":"user","content":"hi"}]}`,
			map[string]string{"Authorization": "Bearer sk-xyz"})
		require.Equal(t, 200, w.Code)
		require.Equal(t, "Bearer sk-xyz", env.stub.LastAuth())
	})
}

func TestDialectPrefixPinsRoute(t *testing.T) {
	engine := testEngine(t)

	// the unprefixed path keeps the highest-priority route
	w := do(engine, "POST", "/v1/messages",
		`{"model":"dual","max_tokens":50,"messages":[{"role":"user","content":"hi"}]}`, fwdAuth(nil))
	require.Equal(t, 200, w.Code)
	require.Equal(t, "hello", gjson.Get(w.Body.String(), "content.0.text").String())

	// the /anthropic prefix pins the lower-priority anthropic route
	w = do(engine, "POST", "/anthropic/v1/messages",
		`{"model":"dual","max_tokens":50,"messages":[{"role":"user","content":"hi"}]}`, fwdAuth(nil))
	require.Equal(t, 200, w.Code)
	require.Equal(t, "from-anthropic", gjson.Get(w.Body.String(), "content.0.text").String())
}

func TestDeclaredDialectMismatch(t *testing.T) {
	t.Run("unary body converted to the client dialect", func(t *testing.T) {
		engine := testEngine(t)
		w := do(engine, "POST", "/v1/messages",
			`{"model":"confused-model","max_tokens":50,"messages":[{"role":"user","content":"hi"}]}`, fwdAuth(nil))
		require.Equal(t, 200, w.Code)
		out := gjson.Parse(w.Body.String())
		require.Equal(t, "hello", out.Get("content.0.text").String())
		require.False(t, out.Get("choices").Exists())
		require.Equal(t, int64(5), out.Get("usage.input_tokens").Int())
	})

	t.Run("stream converted event by event", func(t *testing.T) {
		engine := testEngine(t)
		w := do(engine, "POST", "/v1/messages",
			`{"model":"confused-model","max_tokens":50,"messages":[{"role":"user","content":"hi"}],"stream":true}`, fwdAuth(nil))
		require.Equal(t, 200, w.Code)
		body := w.Body.String()
		require.Contains(t, body, "event: message_start")
		require.Contains(t, body, `"text_delta"`)
		require.Contains(t, body, `"hi"`)
		require.NotContains(t, body, "chat.completion.chunk")
	})
}

func TestUsageRecordsChannelAndTool(t *testing.T) {
	env := newTestEnv(t, true)

	w := do(env.engine, "POST", "/v1/chat/completions",
		`{"model":"test-model","messages":[{"role":"user","content":"hi"}]}`,
		fwdAuth(map[string]string{"x-ccr-channel": "cli", "x-ccr-tool": "coder"}))
	require.Equal(t, 200, w.Code)

	w = do(env.engine, "POST", "/v1/chat/completions",
		`{"model":"test-model","messages":[{"role":"user","content":"hi"}]}`, fwdAuth(nil))
	require.Equal(t, 200, w.Code)

	env.tracker.Stop()

	logs, err := env.ledger.RecentLogs(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	// newest first
	require.Equal(t, "web", logs[0].Channel)
	require.Equal(t, "unknown", logs[0].Tool)
	require.Equal(t, "cli", logs[1].Channel)
	require.Equal(t, "coder", logs[1].Tool)
}

func TestRouteFallbackAfterUpstreamFailure(t *testing.T) {
	engine := testEngine(t)

	w := do(engine, "POST", "/v1/chat/completions",
		`{"model":"flaky","messages":[{"role":"user","content":"hi"}]}`, fwdAuth(nil))
	require.Equal(t, 200, w.Code)
	require.Equal(t, "hello", gjson.Get(w.Body.String(), "choices.0.message.content").String())
}

func TestUnknownModelRejected(t *testing.T) {
	engine := testEngine(t)

	w := do(engine, "POST", "/v1/chat/completions",
		`{"model":"ghost","messages":[{"role":"user","content":"hi"}]}`, fwdAuth(nil))
	require.Equal(t, 404, w.Code)
}

func TestGeminiPathDispatch(t *testing.T) {
	engine := testEngine(t)

	// a colon-free /v1/models POST is not a generate call
	w := do(engine, "POST", "/v1/models/test-model", `{}`, fwdAuth(nil))
	require.Equal(t, 404, w.Code)

	// the generate alias reaches the forwarding pipeline
	w = do(engine, "POST", "/v1/models/test-model:generateContent",
		`{"contents":[{"role":"user","parts":[{"text":"hi"}]}]}`, fwdAuth(nil))
	require.Equal(t, 200, w.Code)
	out := gjson.Parse(w.Body.String())
	require.Equal(t, "hello", out.Get("candidates.0.content.parts.0.text").String())
}

func TestManagementAuth(t *testing.T) {
	engine := testEngine(t)

	w := do(engine, "GET", "/api/management/token", "", nil)
	require.Equal(t, 401, w.Code)

	w = do(engine, "GET", "/api/management/token", "", map[string]string{
		"x-ccr-forward-token": testToken,
	})
	require.Equal(t, 200, w.Code)
	require.Equal(t, testToken, gjson.Get(w.Body.String(), "forward_token").String())
}

func TestConfigRedactedInManagementAPI(t *testing.T) {
	engine := testEngine(t)

	w := do(engine, "GET", "/api/management/config", "", map[string]string{
		"Authorization": "Bearer " + testToken,
	})
	require.Equal(t, 200, w.Code)
	out := gjson.Parse(w.Body.String())
	require.Equal(t, "***", out.Get("upstreams.0.api_key").String())
	require.Empty(t, out.Get("forward_token").String())
}
