package oracle

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"zen7-console/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOracleRoundTrip(t *testing.T) {
	srv := NewServer(discardLogger())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := NewClient(ts.URL+"/", ts.Client(), discardLogger())
	ctx := context.Background()

	status, err := client.Reset(ctx)
	if err != nil {
		t.Fatalf("Reset() error: %v", err)
	}
	if status {
		t.Error("Reset() status = true, want false")
	}

	finished, err := client.CheckFinished(ctx)
	if err != nil {
		t.Fatalf("CheckFinished() error: %v", err)
	}
	if finished {
		t.Error("CheckFinished() after reset = true, want false")
	}

	if err := client.Notify(ctx, map[string]string{"order_number": "A030-5"}); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}

	finished, err = client.CheckFinished(ctx)
	if err != nil {
		t.Fatalf("CheckFinished() error: %v", err)
	}
	if !finished {
		t.Error("CheckFinished() after notify = false, want true")
	}
	if !srv.Finished() {
		t.Error("server flag should be set")
	}

	// Reset clears a finished flag
	if _, err := client.Reset(ctx); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}
	if finished, _ := client.CheckFinished(ctx); finished {
		t.Error("CheckFinished() after second reset = true, want false")
	}
}

func TestNotifyLogsBody(t *testing.T) {
	var buf bytes.Buffer
	srv := NewServer(slog.New(slog.NewTextHandler(&buf, nil)))

	req := httptest.NewRequest("POST", "/notify", strings.NewReader(`{"tx":"0x1"}`))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":true`) {
		t.Errorf("Body = %s", w.Body.String())
	}
	if !strings.Contains(buf.String(), "settlement notified") || !strings.Contains(buf.String(), "0x1") {
		t.Errorf("Log missing notify body: %s", buf.String())
	}
}

func TestNotifyBodyTooLarge(t *testing.T) {
	srv := NewServer(discardLogger())

	big := bytes.Repeat([]byte("x"), MaxNotifyBodySize+1)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest("POST", "/notify", bytes.NewReader(big)))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Status = %d, want 413", w.Code)
	}
	if srv.Finished() {
		t.Error("rejected notify must not set the flag")
	}
}

func TestServerRoutes(t *testing.T) {
	srv := NewServer(discardLogger())
	h := srv.Handler()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/status", http.StatusOK},
		{"PUT", "/reset", http.StatusOK},
		{"GET", "/health", http.StatusOK},
		{"POST", "/status", http.StatusMethodNotAllowed},
		{"GET", "/reset", http.StatusMethodNotAllowed},
		{"GET", "/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			if w.Code != tt.want {
				t.Errorf("Status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantErr: "status 500: boom",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>"))
			},
			wantErr: "decoding response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			_, err := NewClient(ts.URL, ts.Client(), discardLogger()).CheckFinished(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, model.ErrOracleUnavailable) {
				t.Errorf("error should match ErrOracleUnavailable: %v", err)
			}
			var oracleErr *model.OracleError
			if !errors.As(err, &oracleErr) || oracleErr.Op != "check status" {
				t.Errorf("error = %v, want OracleError{Op: check status}", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Error = %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestClientUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := NewClient(url, nil, nil).Reset(context.Background())
	if !errors.Is(err, model.ErrOracleUnavailable) {
		t.Errorf("Reset() error = %v, want ErrOracleUnavailable", err)
	}
}

func TestClientSendsRequestID(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
		w.Write([]byte(`{"status":false}`))
	}))
	defer ts.Close()

	if _, err := NewClient(ts.URL, ts.Client(), nil).CheckFinished(context.Background()); err != nil {
		t.Fatalf("CheckFinished() error: %v", err)
	}
	if len(got) != 32 {
		t.Errorf("X-Request-ID = %q, want 32 hex chars", got)
	}
}

func TestMarkFinished(t *testing.T) {
	srv := NewServer(discardLogger())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	client := NewClient(ts.URL, ts.Client(), discardLogger())

	srv.MarkFinished()

	finished, err := client.CheckFinished(context.Background())
	if err != nil {
		t.Fatalf("CheckFinished() error: %v", err)
	}
	if !finished {
		t.Error("CheckFinished() = false after MarkFinished")
	}
}

func TestHandlerWithMountsExtraRoutes(t *testing.T) {
	srv := NewServer(discardLogger())
	h := srv.HandlerWith(func(mux *http.ServeMux) {
		mux.HandleFunc("GET /extra", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("extra"))
		})
	})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/extra", nil))
	if w.Code != http.StatusOK || w.Body.String() != "extra" {
		t.Errorf("extra route = %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("extra route should run behind the request id middleware")
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/status", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":false`) {
		t.Errorf("status route = %d %q", w.Code, w.Body.String())
	}
}
