package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"zen7-console/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAgent serves an agent card and answers message/send with respond.
type fakeAgent struct {
	server    *httptest.Server
	cardHits  atomic.Int32
	cardJSON  func(baseURL string) string
	cacheCtl  string
	respond   func(w http.ResponseWriter, req rpcRequestEcho)
	mu        sync.Mutex
	requests  []rpcRequestEcho
	rawBodies []map[string]any
}

// rpcRequestEcho decodes what the client put on the wire.
type rpcRequestEcho struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  struct {
		Message model.Message `json:"message"`
	} `json:"params"`
}

func newFakeAgent(t *testing.T, respond func(w http.ResponseWriter, req rpcRequestEcho)) *fakeAgent {
	t.Helper()
	fa := &fakeAgent{respond: respond}
	fa.cardJSON = func(baseURL string) string {
		return `{"name":"Zen7 Payment Agent","url":"` + baseURL + `/","version":"1.0.0","protocolVersion":"0.3.0",
			"capabilities":{"streaming":false},"skills":[{"id":"settle","name":"Settle payment"}]}`
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+AgentCardPath, func(w http.ResponseWriter, r *http.Request) {
		fa.cardHits.Add(1)
		fa.mu.Lock()
		card := fa.cardJSON(fa.server.URL)
		cacheCtl := fa.cacheCtl
		fa.mu.Unlock()
		if cacheCtl != "" {
			w.Header().Set("Cache-Control", cacheCtl)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(card))
	})
	mux.HandleFunc("POST /", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req rpcRequestEcho
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("request decode: %v", err)
		}
		var raw map[string]any
		json.Unmarshal(body, &raw)

		fa.mu.Lock()
		fa.requests = append(fa.requests, req)
		fa.rawBodies = append(fa.rawBodies, raw)
		fa.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		fa.respond(w, req)
	})

	fa.server = httptest.NewServer(mux)
	t.Cleanup(fa.server.Close)
	return fa
}

func (fa *fakeAgent) setCard(fn func(baseURL string) string) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	fa.cardJSON = fn
}

func (fa *fakeAgent) setCacheControl(v string) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	fa.cacheCtl = v
}

func (fa *fakeAgent) recorded() ([]rpcRequestEcho, []map[string]any) {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fa.requests, fa.rawBodies
}

func (fa *fakeAgent) client(timeout time.Duration) *Client {
	return New(Config{
		BaseURL:    fa.server.URL,
		Timeout:    timeout,
		HTTPClient: fa.server.Client(),
		Logger:     discardLogger(),
	})
}

func replyResult(result string) func(http.ResponseWriter, rpcRequestEcho) {
	return func(w http.ResponseWriter, req rpcRequestEcho) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":"` + req.ID + `","result":` + result + `}`))
	}
}

func testMessage(text string) *model.Message {
	return &model.Message{
		Role:      model.RoleUser,
		Parts:     []model.Part{model.NewTextPart(text)},
		MessageID: model.NewID(),
		Metadata:  model.Metadata{UserID: "user_02", Timezone: "UTC"},
	}
}

func TestSendTurnInputRequired(t *testing.T) {
	fa := newFakeAgent(t, replyResult(`{
		"kind": "task",
		"id": "task-1",
		"contextId": "ctx-1",
		"status": {"state": "input-required", "message": {"role": "agent", "parts": [{"kind": "text", "text": "confirm?"}]}}
	}`))

	msg := testMessage("I want to make a payment")
	result, err := fa.client(5*time.Second).SendTurn(context.Background(), msg)
	if err != nil {
		t.Fatalf("SendTurn() error: %v", err)
	}

	if result.State != model.TaskStateInputRequired {
		t.Errorf("State = %q, want input_required", result.State)
	}
	if result.ContextID != "ctx-1" || result.TaskID != "task-1" {
		t.Errorf("ids = (%q, %q), want (ctx-1, task-1)", result.ContextID, result.TaskID)
	}
	if result.StatusMessage != "confirm?" {
		t.Errorf("StatusMessage = %q, want confirm?", result.StatusMessage)
	}

	// Verify wire shape
	requests, rawBodies := fa.recorded()
	req := requests[0]
	if req.JSONRPC != "2.0" || req.Method != "message/send" || req.ID == "" {
		t.Errorf("envelope = %+v", req)
	}
	if req.Params.Message.MessageID != msg.MessageID {
		t.Errorf("message_id = %q, want %q", req.Params.Message.MessageID, msg.MessageID)
	}
	if req.Params.Message.Metadata.UserID != "user_02" {
		t.Errorf("metadata.user_id = %q", req.Params.Message.Metadata.UserID)
	}
	params := rawBodies[0]["params"].(map[string]any)["message"].(map[string]any)
	if _, ok := params["context_id"]; ok {
		t.Error("context_id must be omitted on the first turn")
	}
}

func TestSendTurnCarriesCorrelation(t *testing.T) {
	fa := newFakeAgent(t, replyResult(`{
		"id": "task-1", "context_id": "ctx-1",
		"status": {"state": "completed"},
		"artifacts": [{"parts": [{"kind": "text", "text": "paid"}]}]
	}`))

	msg := testMessage("yes")
	msg.ContextID = "ctx-1"
	msg.TaskID = "task-1"

	result, err := fa.client(5*time.Second).SendTurn(context.Background(), msg)
	if err != nil {
		t.Fatalf("SendTurn() error: %v", err)
	}
	if result.State != model.TaskStateCompleted {
		t.Errorf("State = %q, want completed", result.State)
	}
	if result.ArtifactText() != "paid" {
		t.Errorf("ArtifactText() = %q, want paid", result.ArtifactText())
	}

	requests, _ := fa.recorded()
	got := requests[0].Params.Message
	if got.ContextID != "ctx-1" || got.TaskID != "task-1" {
		t.Errorf("wire ids = (%q, %q), want (ctx-1, task-1)", got.ContextID, got.TaskID)
	}
}

func TestCardResolvedOncePerClient(t *testing.T) {
	fa := newFakeAgent(t, replyResult(`{"id":"t","status":{"state":"working"}}`))
	client := fa.client(5 * time.Second)

	for i := 0; i < 3; i++ {
		if _, err := client.SendTurn(context.Background(), testMessage("hi")); err != nil {
			t.Fatalf("SendTurn() #%d error: %v", i, err)
		}
	}
	if hits := fa.cardHits.Load(); hits != 1 {
		t.Errorf("card fetched %d times, want 1", hits)
	}

	card, err := client.ResolveCapabilities(context.Background())
	if err != nil {
		t.Fatalf("ResolveCapabilities() error: %v", err)
	}
	if card.Name != "Zen7 Payment Agent" || len(card.Skills) != 1 {
		t.Errorf("card = %+v", card)
	}
}

func TestSendTurnErrors(t *testing.T) {
	tests := []struct {
		name    string
		respond func(http.ResponseWriter, rpcRequestEcho)
		wantErr string
		status  int
	}{
		{
			name: "non-success status",
			respond: func(w http.ResponseWriter, _ rpcRequestEcho) {
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte("upstream down"))
			},
			wantErr: "upstream down",
			status:  http.StatusBadGateway,
		},
		{
			name: "json-rpc error",
			respond: func(w http.ResponseWriter, req rpcRequestEcho) {
				w.Write([]byte(`{"jsonrpc":"2.0","id":"` + req.ID + `","error":{"code":-32602,"message":"invalid params"}}`))
			},
			wantErr: "json-rpc error -32602: invalid params",
		},
		{
			name: "malformed body",
			respond: func(w http.ResponseWriter, _ rpcRequestEcho) {
				w.Write([]byte("not json"))
			},
			wantErr: "decode response",
		},
		{
			name: "missing result",
			respond: func(w http.ResponseWriter, req rpcRequestEcho) {
				w.Write([]byte(`{"jsonrpc":"2.0","id":"` + req.ID + `"}`))
			},
			wantErr: "missing result",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := newFakeAgent(t, tt.respond)

			_, err := fa.client(5*time.Second).SendTurn(context.Background(), testMessage("hi"))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, model.ErrTransport) {
				t.Errorf("error should match ErrTransport: %v", err)
			}
			var tErr *model.TransportError
			if !errors.As(err, &tErr) {
				t.Fatalf("error should be TransportError: %T", err)
			}
			if tErr.Transport != "a2a" {
				t.Errorf("Transport = %q, want a2a", tErr.Transport)
			}
			if tt.status != 0 && tErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", tErr.StatusCode, tt.status)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Error = %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSendTurnTimeout(t *testing.T) {
	fa := newFakeAgent(t, func(w http.ResponseWriter, _ rpcRequestEcho) {
		time.Sleep(500 * time.Millisecond)
	})

	start := time.Now()
	_, err := fa.client(50*time.Millisecond).SendTurn(context.Background(), testMessage("hi"))
	if !errors.Is(err, model.ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if !errors.Is(err, model.ErrTransport) {
		t.Error("timeout should also match ErrTransport")
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("SendTurn took %v, deadline not enforced", elapsed)
	}
}

func TestResolveCapabilitiesErrors(t *testing.T) {
	tests := []struct {
		name    string
		card    string
		wantErr string
	}{
		{"missing url", `{"name":"agent"}`, "malformed agent card"},
		{"wrong type", `{"name":"agent","url":42}`, "malformed agent card"},
		{"unsupported protocol", `{"name":"agent","url":"/","protocolVersion":"1.0.0"}`, "unsupported protocolVersion"},
		{"invalid protocol", `{"name":"agent","url":"/","protocolVersion":"latest"}`, "invalid protocolVersion"},
		{"not json", `<html>`, "malformed agent card"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := newFakeAgent(t, replyResult(`{}`))
			fa.setCard(func(string) string { return tt.card })

			_, err := fa.client(5*time.Second).ResolveCapabilities(context.Background())
			if !errors.Is(err, model.ErrTransport) {
				t.Fatalf("error = %v, want ErrTransport", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Error = %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestResolveCapabilitiesRetriesAfterFailure(t *testing.T) {
	fa := newFakeAgent(t, replyResult(`{}`))
	good := fa.cardJSON
	fa.setCard(func(string) string { return `{}` })

	client := fa.client(5 * time.Second)
	if _, err := client.ResolveCapabilities(context.Background()); err == nil {
		t.Fatal("expected first resolution to fail")
	}

	fa.setCard(good)
	card, err := client.ResolveCapabilities(context.Background())
	if err != nil {
		t.Fatalf("second ResolveCapabilities() error: %v", err)
	}
	if card.Name != "Zen7 Payment Agent" {
		t.Errorf("Name = %q", card.Name)
	}
}

func TestUnreachableAgent(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	client := New(Config{BaseURL: url, Timeout: time.Second, Logger: discardLogger()})
	_, err := client.SendTurn(context.Background(), testMessage("hi"))
	if !errors.Is(err, model.ErrTransport) {
		t.Errorf("error = %v, want ErrTransport", err)
	}
}

func TestEndpoint(t *testing.T) {
	c := New(Config{BaseURL: "http://agent.local:10000/"})
	tests := []struct {
		cardURL string
		want    string
	}{
		{"https://settle.example.com/rpc", "https://settle.example.com/rpc"},
		{"", "http://agent.local:10000/"},
		{"/", "http://agent.local:10000/"},
		{"/rpc", "http://agent.local:10000/rpc"},
	}
	for _, tt := range tests {
		if got := c.endpoint(&model.AgentCard{URL: tt.cardURL}); got != tt.want {
			t.Errorf("endpoint(%q) = %q, want %q", tt.cardURL, got, tt.want)
		}
	}
}

func TestToTaskResultBareMessage(t *testing.T) {
	var p taskPayload
	json.Unmarshal([]byte(`{"kind":"message","contextId":"ctx-9","parts":[{"kind":"text","text":"hello"}]}`), &p)

	result := p.toTaskResult()
	if result.State != model.TaskStateUnknown {
		t.Errorf("State = %q, want unknown", result.State)
	}
	if result.StatusMessage != "hello" || result.ContextID != "ctx-9" {
		t.Errorf("result = %+v", result)
	}
}

func TestDescribeCard(t *testing.T) {
	out := DescribeCard(&model.AgentCard{
		Name:            "Zen7",
		URL:             "http://localhost:10000/",
		ProtocolVersion: "0.3.0",
		Skills:          []model.AgentSkill{{ID: "settle", Name: "Settle payment"}},
	})
	for _, want := range []string{"Zen7 (http://localhost:10000/)", "protocol 0.3.0", "- settle: Settle payment"} {
		if !strings.Contains(out, want) {
			t.Errorf("DescribeCard() missing %q:\n%s", want, out)
		}
	}
}

func TestSharedResolverCachePolicy(t *testing.T) {
	tests := []struct {
		cacheControl string
		wantHits     int32
	}{
		{"max-age=3600", 1},
		{"no-store", 3},
		{"max-age=0", 3},
	}

	for _, tt := range tests {
		t.Run(tt.cacheControl, func(t *testing.T) {
			fa := newFakeAgent(t, replyResult(`{"id":"t","status":{"state":"working"}}`))
			fa.setCacheControl(tt.cacheControl)
			resolver := NewCardResolver(fa.server.Client(), time.Minute)

			newClient := func() *Client {
				return New(Config{
					BaseURL:    fa.server.URL,
					HTTPClient: fa.server.Client(),
					Resolver:   resolver,
					Logger:     discardLogger(),
				})
			}
			first, second := newClient(), newClient()
			ctx := context.Background()

			if _, err := first.SendTurn(ctx, testMessage("hi")); err != nil {
				t.Fatalf("first SendTurn() error: %v", err)
			}
			if _, err := second.SendTurn(ctx, testMessage("hi")); err != nil {
				t.Fatalf("second SendTurn() error: %v", err)
			}
			// A new conversation on the first client re-pins the card
			if err := first.Refresh(ctx); err != nil {
				t.Fatalf("Refresh() error: %v", err)
			}
			if _, err := first.SendTurn(ctx, testMessage("hi")); err != nil {
				t.Fatalf("SendTurn() after Refresh error: %v", err)
			}

			if hits := fa.cardHits.Load(); hits != tt.wantHits {
				t.Errorf("card fetched %d times, want %d", hits, tt.wantHits)
			}
		})
	}
}

func TestRefreshPinsNewCard(t *testing.T) {
	fa := newFakeAgent(t, replyResult(`{"id":"t","status":{"state":"working"}}`))
	fa.setCacheControl("no-store")
	client := fa.client(5 * time.Second)
	ctx := context.Background()

	card, err := client.ResolveCapabilities(ctx)
	if err != nil {
		t.Fatalf("ResolveCapabilities() error: %v", err)
	}
	if card.Name != "Zen7 Payment Agent" {
		t.Fatalf("Name = %q", card.Name)
	}

	fa.setCard(func(baseURL string) string {
		return `{"name":"Zen7 Payment Agent v2","url":"` + baseURL + `/"}`
	})
	if card, _ := client.ResolveCapabilities(ctx); card.Name != "Zen7 Payment Agent" {
		t.Errorf("card should stay pinned until Refresh, got %q", card.Name)
	}

	if err := client.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if card, _ := client.ResolveCapabilities(ctx); card.Name != "Zen7 Payment Agent v2" {
		t.Errorf("Name after Refresh = %q", card.Name)
	}

	// A failed refresh keeps the pinned card
	fa.setCard(func(string) string { return `{}` })
	if err := client.Refresh(ctx); err == nil {
		t.Error("expected Refresh() to fail on a malformed card")
	}
	if card, _ := client.ResolveCapabilities(ctx); card.Name != "Zen7 Payment Agent v2" {
		t.Errorf("Name after failed Refresh = %q", card.Name)
	}
}
