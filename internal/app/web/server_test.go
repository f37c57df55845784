package web

import (
	"ChatImageStudio/internal/ai"
	"ChatImageStudio/internal/app/dispatcher"
	"ChatImageStudio/internal/config"
	"ChatImageStudio/internal/metrics"
	"ChatImageStudio/internal/service/image"
	"ChatImageStudio/internal/service/session"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	chatReply  string
	chatErr    error
	outputs    []string
	imageErr   error
	imageCalls int
}

func (f *fakeClient) Chat(_ context.Context, _ ai.ChatRequest) (ai.ChatResponse, error) {
	if f.chatErr != nil {
		return ai.ChatResponse{}, f.chatErr
	}
	return ai.ChatResponse{Content: f.chatReply, HasContent: f.chatReply != ""}, nil
}

func (f *fakeClient) GenerateImages(_ context.Context, _ ai.ImageRequest) (ai.ImageResponse, error) {
	f.imageCalls++
	return ai.ImageResponse{Outputs: f.outputs}, f.imageErr
}

type testEnv struct {
	srv      *httptest.Server
	client   *http.Client
	sessions *session.Store
}

func newTestEnv(t *testing.T, variant string, c ai.Client) *testEnv {
	t.Helper()
	cfg := config.Defaults()
	cfg.Provider = config.ProviderStub
	cfg.ImageVariant = variant
	cfg.Normalize()
	logger := zap.NewNop().Sugar()
	m := metrics.New()
	sessions := session.NewStore(m)
	d := dispatcher.New(cfg, c, image.NewFetcher(nil, logger), logger, m)

	srv := httptest.NewServer(New(cfg, d, sessions, m, logger).Handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testEnv{srv: srv, client: &http.Client{Jar: jar}, sessions: sessions}
}

func (e *testEnv) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := e.client.Get(e.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func (e *testEnv) post(t *testing.T, path string, form url.Values) (int, string) {
	t.Helper()
	resp, err := e.client.PostForm(e.srv.URL+path, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestMisconfigured_OnlyFatalMessage(t *testing.T) {
	cfg := config.Defaults()
	cfgErr := cfg.Validate()
	require.ErrorIs(t, cfgErr, config.ErrMissingAPIKey)

	srv := httptest.NewServer(NewMisconfigured(cfg, cfgErr, nil, zap.NewNop().Sugar()).Handler())
	defer srv.Close()

	for _, path := range []string{"/", "/chat", "/image", "/ws/chat"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
		assert.Equal(t, 1, strings.Count(string(body), "API key missing. Set BYTEZ_API_KEY environment variable."), path)
		assert.NotContains(t, string(body), `action="/chat"`, path)
		assert.NotContains(t, string(body), `action="/image"`, path)
	}

	resp, err := http.Post(srv.URL+"/chat", "application/x-www-form-urlencoded", strings.NewReader("message=hi"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMisconfigured_UnknownProviderShowsRealCause(t *testing.T) {
	cfg := config.Defaults()
	cfg.Provider = "opnai"
	cfg.BytezAPIKey = "set"
	cfgErr := cfg.Validate()
	require.Error(t, cfgErr)
	require.NotErrorIs(t, cfgErr, config.ErrMissingAPIKey)

	srv := httptest.NewServer(NewMisconfigured(cfg, cfgErr, nil, zap.NewNop().Sugar()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/chat")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.NotContains(t, string(body), "API key missing")
	assert.Contains(t, string(body), "Configuration error: unknown provider &#34;opnai&#34;")
	assert.NotContains(t, string(body), `action="/chat"`)
}

func TestChatPage_ShowsSystemMessage(t *testing.T) {
	env := newTestEnv(t, config.VariantBasic, &fakeClient{})
	status, body := env.get(t, "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "You are a helpful assistant.")
	assert.Equal(t, 1, env.sessions.Len())
}

func TestChatSubmit_AppendsTurns(t *testing.T) {
	env := newTestEnv(t, config.VariantBasic, &fakeClient{chatReply: "Paris"})
	status, body := env.post(t, "/chat", url.Values{"message": {"Capital of France?"}})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Capital of France?")
	assert.Contains(t, body, "Paris")

	_, body = env.get(t, "/chat")
	assert.Contains(t, body, "Paris")
	assert.Equal(t, 1, env.sessions.Len())
}

func TestChatSubmit_ProviderErrorKeepsUserTurn(t *testing.T) {
	env := newTestEnv(t, config.VariantBasic, &fakeClient{chatErr: errors.New("boom")})
	status, body := env.post(t, "/chat", url.Values{"message": {"hello there"}})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Contains(t, body, "API Error: boom")

	_, body = env.get(t, "/chat")
	assert.Contains(t, body, "hello there")
	assert.NotContains(t, body, "API Error")
}

func TestChatReset(t *testing.T) {
	env := newTestEnv(t, config.VariantBasic, &fakeClient{chatReply: "pong"})
	env.post(t, "/chat", url.Values{"message": {"ping"}})
	status, body := env.post(t, "/chat/reset", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.NotContains(t, body, "ping")
	assert.Contains(t, body, "You are a helpful assistant.")
}

func TestImageSubmit_EmptyPrompt(t *testing.T) {
	fc := &fakeClient{outputs: []string{"https://example.com/a.png"}}
	env := newTestEnv(t, config.VariantBasic, fc)
	status, body := env.post(t, "/image", url.Values{"prompt": {"   "}})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, body, "Please enter a prompt!")
	assert.Zero(t, fc.imageCalls)
}

func TestImageSubmit_OneImageOneWarning(t *testing.T) {
	fc := &fakeClient{outputs: []string{"https://example.com/a.png", "not-a-url"}}
	env := newTestEnv(t, config.VariantBasic, fc)
	status, body := env.post(t, "/image", url.Values{"prompt": {"a red apple on a table"}})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, strings.Count(body, `class="result"`))
	assert.Contains(t, body, `src="https://example.com/a.png"`)
	assert.Equal(t, 1, strings.Count(body, "Invalid URL: not-a-url"))
	assert.NotContains(t, body, `class="error"`)
	assert.NotContains(t, body, `src="not-a-url"`)
}

func TestImageSubmit_NoImages(t *testing.T) {
	env := newTestEnv(t, config.VariantBasic, &fakeClient{})
	status, body := env.post(t, "/image", url.Values{"prompt": {"cat"}})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Contains(t, body, "No images returned.")
}

func TestImagePage_OptionsOnlyForOptionVariants(t *testing.T) {
	basic := newTestEnv(t, config.VariantBasic, &fakeClient{})
	_, body := basic.get(t, "/image")
	assert.NotContains(t, body, `name="count"`)

	opts := newTestEnv(t, config.VariantOptions, &fakeClient{})
	_, body = opts.get(t, "/image")
	assert.Contains(t, body, `name="count"`)
	assert.Contains(t, body, "1024x1024")
}

func TestImageSubmit_InvalidCount(t *testing.T) {
	fc := &fakeClient{outputs: []string{"https://example.com/a.png"}}
	env := newTestEnv(t, config.VariantOptions, fc)
	status, _ := env.post(t, "/image", url.Values{"prompt": {"cat"}, "count": {"7"}, "size": {"512x512"}})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Zero(t, fc.imageCalls)
}

func TestImageDownload(t *testing.T) {
	payload := []byte("\x89PNG\r\n\x1a\nfake-image-bytes")
	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer imgSrv.Close()

	fc := &fakeClient{outputs: []string{imgSrv.URL + "/missing.png", imgSrv.URL + "/ok.png"}}
	env := newTestEnv(t, config.VariantDownload, fc)
	status, body := env.post(t, "/image", url.Values{"prompt": {"cat"}, "count": {"2"}, "size": {"256x256"}})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Failed to fetch image 1")
	assert.Contains(t, body, "generated_image_2.png")
	assert.Contains(t, body, "data:image/png;base64,")

	resp, err := env.client.Get(env.srv.URL + "/image/download/2")
	require.NoError(t, err)
	defer resp.Body.Close()
	got, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, payload, got)
	assert.Equal(t, `attachment; filename="generated_image_2.png"`, resp.Header.Get("Content-Disposition"))

	status, _ = env.get(t, "/image/download/1")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestChatWebSocket(t *testing.T) {
	env := newTestEnv(t, config.VariantBasic, &fakeClient{chatReply: "hi from ws"})
	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(wsChatRequest{Message: "hello"}))
	var resp wsChatResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "hi from ws", resp.Reply)
	assert.Empty(t, resp.Error)

	require.NoError(t, conn.WriteJSON(wsChatRequest{Message: " "}))
	resp = wsChatResponse{}
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "Please enter a message!", resp.Warning)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, config.VariantBasic, &fakeClient{chatReply: "x"})
	status, body := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body)

	env.post(t, "/chat", url.Values{"message": {"hi"}})
	status, body = env.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `studio_provider_requests_total{kind="chat",outcome="success"} 1`)
	assert.Contains(t, body, "studio_active_sessions 1")
}
