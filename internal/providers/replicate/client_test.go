package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/domain"
)

func TestCreatePredictionModelScoped(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != "/models/bytedance/seedream-3/predictions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("unexpected auth header: %s", got)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if _, ok := payload["version"]; ok {
			t.Fatalf("model-scoped request must not carry version: %v", payload)
		}
		input, _ := payload["input"].(map[string]any)
		if input["prompt"] != "a cat in a hat" {
			t.Fatalf("unexpected input: %v", payload["input"])
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"p1","status":"starting","urls":{"get":"`+"http://"+r.Host+`/predictions/p1"}}`)
	}))
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	pred, err := client.CreatePrediction(context.Background(), "test-token", ModelRef{Model: "bytedance/seedream-3"}, map[string]any{"prompt": "a cat in a hat"})
	if err != nil {
		t.Fatalf("CreatePrediction error: %v", err)
	}
	if pred.ID != "p1" || pred.Status != domain.JobStatusStarting {
		t.Fatalf("unexpected prediction: %+v", pred)
	}
	if pred.URLs.Get != ts.URL+"/predictions/p1" {
		t.Fatalf("unexpected status url: %s", pred.URLs.Get)
	}
	if !strings.Contains(string(pred.Raw), `"id":"p1"`) {
		t.Fatalf("raw body not kept: %s", pred.Raw)
	}
}

func TestCreatePredictionVersioned(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predictions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var payload createRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Version != "abc123" {
			t.Fatalf("unexpected version: %q", payload.Version)
		}
		_, _ = io.WriteString(w, `{"id":"p2","status":"starting","urls":{"get":"x"}}`)
	}))
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	if _, err := client.CreatePrediction(context.Background(), "t", ModelRef{Version: "abc123"}, map[string]any{"prompt": "x"}); err != nil {
		t.Fatalf("CreatePrediction error: %v", err)
	}
}

func TestCreatePredictionRejectsAmbiguousRef(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	for _, ref := range []ModelRef{{}, {Model: "a/b", Version: "v"}} {
		_, err := client.CreatePrediction(context.Background(), "t", ref, map[string]any{"prompt": "x"})
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Fatalf("ref %+v: expected ErrInvalidRequest, got %v", ref, err)
		}
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no network calls, got %d", calls)
	}
}

func TestCreatePredictionAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"detail":"input.prompt is required"}`)
	}))
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	_, err := client.CreatePrediction(context.Background(), "t", ModelRef{Model: "a/b"}, map[string]any{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity || string(apiErr.Body) != `{"detail":"input.prompt is required"}` {
		t.Fatalf("unexpected api error: %d %s", apiErr.StatusCode, apiErr.Body)
	}
}

func TestMissingTokenSkipsNetwork(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	ctx := context.Background()
	checks := map[string]error{}
	_, checks["create"] = client.CreatePrediction(ctx, "", ModelRef{Model: "a/b"}, map[string]any{"x": 1})
	_, checks["get"] = client.GetPrediction(ctx, " ", ts.URL+"/predictions/p")
	_, checks["account"] = client.Account(ctx, "")
	_, checks["upload"] = client.UploadFile(ctx, "", domain.File{Data: []byte("x")})
	for name, err := range checks {
		var authErr *domain.AuthError
		if !errors.As(err, &authErr) {
			t.Fatalf("%s: expected AuthError, got %v", name, err)
		}
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no network calls, got %d", calls)
	}
}

func TestUploadFileMultipart(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("unexpected auth header: %s", got)
		}
		file, header, err := r.FormFile(UploadField)
		if err != nil {
			t.Fatalf("missing content field: %v", err)
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "\x89PNG" {
			t.Fatalf("unexpected payload: %q", data)
		}
		if header.Filename != "start.png" {
			t.Fatalf("unexpected filename: %s", header.Filename)
		}
		if ct := header.Header.Get("Content-Type"); ct != "image/png" {
			t.Fatalf("unexpected part content type: %s", ct)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"f1","urls":{"get":"https://api.replicate.com/v1/files/f1"}}`)
	}))
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	obj, err := client.UploadFile(context.Background(), "test-token", domain.File{Name: "start.png", MIME: "image/png", Data: []byte("\x89PNG")})
	if err != nil {
		t.Fatalf("UploadFile error: %v", err)
	}
	if obj.URLs.Get != "https://api.replicate.com/v1/files/f1" {
		t.Fatalf("unexpected url: %s", obj.URLs.Get)
	}
}

func TestUploadEmptyFileSurfacesProviderError(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		file, header, err := r.FormFile(UploadField)
		if err != nil {
			t.Fatalf("missing content field: %v", err)
		}
		defer file.Close()
		if header.Filename != defaultUploadName {
			t.Fatalf("unexpected default filename: %s", header.Filename)
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"detail":"file is empty"}`)
	}))
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	_, err := client.UploadFile(context.Background(), "t", domain.File{})
	var upErr *domain.UploadError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UploadError, got %v", err)
	}
	if upErr.StatusCode != http.StatusBadRequest || string(upErr.Body) != `{"detail":"file is empty"}` {
		t.Fatalf("unexpected upload error: %d %s", upErr.StatusCode, upErr.Body)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly one request, got %d", calls)
	}
}

func TestGetPredictionByIDEscapesPath(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/predictions/abc%2Fdef" {
			t.Fatalf("unexpected path: %s", r.URL.EscapedPath())
		}
		_, _ = io.WriteString(w, `{"id":"abc/def","status":"succeeded","output":"https://x/y.png","urls":{"get":"g"}}`)
	}))
	defer ts.Close()

	client := NewClient(Options{BaseURL: ts.URL})
	pred, err := client.GetPredictionByID(context.Background(), "t", "abc/def")
	if err != nil {
		t.Fatalf("GetPredictionByID error: %v", err)
	}
	if pred.Status != domain.JobStatusSucceeded {
		t.Fatalf("unexpected status: %s", pred.Status)
	}
}

func TestPredictionErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "null", raw: `null`, want: ""},
		{name: "string", raw: `"NSFW content detected"`, want: "NSFW content detected"},
		{name: "object", raw: `{"code":1}`, want: `{"code":1}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &Prediction{Error: json.RawMessage(tc.raw)}
			if got := p.ErrorMessage(); got != tc.want {
				t.Fatalf("ErrorMessage() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDetectMIME(t *testing.T) {
	if got := DetectMIME(nil); got != "application/octet-stream" {
		t.Fatalf("DetectMIME(nil) = %q", got)
	}
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	if got := DetectMIME(png); got != "image/png" {
		t.Fatalf("DetectMIME(png) = %q", got)
	}
}
