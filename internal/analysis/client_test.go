package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/20223096/mbti-app/internal/traits"
)

func newTestClient(url string) *Client {
	c := NewClient(url, 5*time.Second)
	c.backoff = time.Millisecond
	return c
}

func TestChat_RequestShape(t *testing.T) {
	var gotPath, gotMethod, gotCT string
	var gotBody map[string]json.RawMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod, gotCT = r.URL.Path, r.Method, r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		fmt.Fprint(w, `{"assistant_message":"ok"}`)
	}))
	defer srv.Close()

	p := traits.NewProfile("ISTP")
	_, err := newTestClient(srv.URL+"/").Chat(context.Background(), ChatRequest{
		Messages:      []Message{{Role: "user", Content: "he left me on read"}},
		MBTI:          Optional("ISTP"),
		TraitsProfile: &p,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if gotMethod != http.MethodPost || gotPath != "/chat" {
		t.Errorf("request = %s %s, want POST /chat", gotMethod, gotPath)
	}
	if gotCT != "application/json" {
		t.Errorf("Content-Type = %q", gotCT)
	}
	if string(gotBody["messages"]) != `[{"role":"user","content":"he left me on read"}]` {
		t.Errorf("messages = %s", gotBody["messages"])
	}
	if string(gotBody["mbti"]) != `"ISTP"` {
		t.Errorf("mbti = %s", gotBody["mbti"])
	}
	for _, k := range []string{"relationship_type", "relationship_state"} {
		if string(gotBody[k]) != "null" {
			t.Errorf("%s = %s, want null", k, gotBody[k])
		}
	}
	var prof map[string]json.RawMessage
	if err := json.Unmarshal(gotBody["traits_profile"], &prof); err != nil {
		t.Fatalf("traits_profile not an object: %s", gotBody["traits_profile"])
	}
	if string(prof["type"]) != `"ISTP"` {
		t.Errorf("traits_profile.type = %s", prof["type"])
	}
}

func TestChat_NilProfileAndMessagesEncode(t *testing.T) {
	var gotBody map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Chat(context.Background(), ChatRequest{}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if string(gotBody["traits_profile"]) != "null" || string(gotBody["mbti"]) != "null" {
		t.Errorf("body = %v, want null profile and label", gotBody)
	}
	if string(gotBody["messages"]) != "[]" {
		t.Errorf("messages = %s, want []", gotBody["messages"])
	}
}

func TestChat_DecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"assistant_message": "Give it a day.",
			"analysis_json": {
				"summary": "slow replier",
				"confidence": 0.8,
				"updated_traits_patch": [{"path":"partner.reply_speed","value_json":"\"slow\""}],
				"follow_up_questions": ["a","b","c","d","e"]
			}
		}`)
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.AssistantMessage != "Give it a day." {
		t.Errorf("AssistantMessage = %q", resp.AssistantMessage)
	}
	patch, ok := resp.Analysis.Patch()
	if !ok || len(patch) != 1 || patch[0].Path != "partner.reply_speed" {
		t.Fatalf("Patch = %v, %v", patch, ok)
	}
	if s, _ := patch[0].Value.AsString(); s != "slow" {
		t.Errorf("patch value = %v", patch[0].Value.Interface())
	}
	if got := resp.Analysis.FollowUps(); strings.Join(got, ",") != "a,b,c" {
		t.Errorf("FollowUps = %v, want [a b c]", got)
	}
	if resp.Analysis.Summary() != "slow replier" {
		t.Errorf("Summary = %q", resp.Analysis.Summary())
	}
	if c, ok := resp.Analysis.Confidence(); !ok || c != 0.8 {
		t.Errorf("Confidence = %v, %v", c, ok)
	}
}

func TestChat_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "boom")
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Chat(context.Background(), ChatRequest{})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.StatusCode != 500 || se.Body != "boom" {
		t.Errorf("StatusError = %+v", se)
	}
	if err.Error() != "API Error: 500" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestChat_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>not json</html>`)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestChat_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	if _, err := newTestClient(url).Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestChat_RateLimit_Retry(t *testing.T) {
	var attempt atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempt.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"assistant_message":"after retry"}`)
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.AssistantMessage != "after retry" {
		t.Errorf("AssistantMessage = %q", resp.AssistantMessage)
	}
	if attempt.Load() != 2 {
		t.Errorf("attempts = %d, want 2", attempt.Load())
	}
}

func TestChat_RateLimit_Exhausted(t *testing.T) {
	var attempt atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Chat(context.Background(), ChatRequest{})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("err = %v, want rate limited", err)
	}
	if attempt.Load() != maxRetries {
		t.Errorf("attempts = %d, want %d", attempt.Load(), maxRetries)
	}
}

func TestChat_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.backoff = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := c.Chat(ctx, ChatRequest{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestAnalysis_NonObjectIsEmpty(t *testing.T) {
	var resp ChatResponse
	if err := json.Unmarshal([]byte(`{"assistant_message":"hi","analysis_json":"oops"}`), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := resp.Analysis.Patch(); ok {
		t.Error("Patch should be absent")
	}
	if resp.Analysis.FollowUps() != nil {
		t.Error("FollowUps should be nil")
	}
}

func TestAnalysis_FollowUps(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"missing", `{}`, nil},
		{"not array", `{"follow_up_questions":"why?"}`, nil},
		{"null", `{"follow_up_questions":null}`, nil},
		{"short", `{"follow_up_questions":["one"]}`, []string{"one"}},
		{"skips non-strings", `{"follow_up_questions":[1,"a",null,"b"]}`, []string{"a", "b"}},
		{"caps at three", `{"follow_up_questions":["1","2","3","4"]}`, []string{"1", "2", "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Analysis
			if err := json.Unmarshal([]byte(tt.raw), &a); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			got := a.FollowUps()
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("FollowUps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnalysis_AdvisoryFieldsIgnoreWrongTypes(t *testing.T) {
	a := Analysis{
		"summary":    json.RawMessage(`{"text":"nested"}`),
		"confidence": json.RawMessage(`"high"`),
	}
	if got := a.Summary(); got != "" {
		t.Errorf("Summary = %q, want empty for a non-string", got)
	}
	if c, ok := a.Confidence(); ok {
		t.Errorf("Confidence = %v, want not ok for a non-number", c)
	}
	if got := (Analysis{}).Summary(); got != "" {
		t.Errorf("Summary of empty analysis = %q", got)
	}
}

func TestOptional(t *testing.T) {
	if Optional("  ") != nil {
		t.Error("blank should be nil")
	}
	if p := Optional(" ENFP "); p == nil || *p != "ENFP" {
		t.Errorf("Optional = %v", p)
	}
}
