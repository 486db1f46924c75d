package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/campus-drift/internal/drift"
	"github.com/thebtf/campus-drift/pkg/models"
)

type upstream struct {
	server   *httptest.Server
	requests []chatRequest
	headers  []http.Header
	mu       sync.Mutex
	hits     atomic.Int32
}

// newUpstream starts a fake chat endpoint. respond decides the reply per model.
func newUpstream(t *testing.T, respond func(model string, w http.ResponseWriter)) *upstream {
	t.Helper()
	u := &upstream{}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		u.mu.Lock()
		u.requests = append(u.requests, req)
		u.headers = append(u.headers, r.Header.Clone())
		u.mu.Unlock()
		respond(req.Model, w)
	}))
	t.Cleanup(u.server.Close)
	return u
}

func reply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q}}]}`, content)
}

func TestAsk_NoAPIKeyUsesFallback(t *testing.T) {
	a := New(Config{Endpoint: "http://127.0.0.1:1", Models: []string{"m"}})

	resp := a.Ask(context.Background(), Request{Query: "anything on tonight?"}, StudentContext{})
	assert.Equal(t, "fallback", resp.Source)
	assert.Equal(t, Fallback("tonight"), resp.Message)
	require.NotNil(t, resp.FollowUp)
	assert.Equal(t, FallbackFollowUp, *resp.FollowUp)
}

func TestComplete_NoAPIKeyIsUnavailable(t *testing.T) {
	a := New(Config{Models: []string{"m"}})
	_, _, err := a.complete(context.Background(), Request{Query: "q"}, StudentContext{})
	assert.True(t, errors.Is(err, drift.ErrExternalServiceUnavailable))
}

func TestAsk_ModelAnswerStripsThinking(t *testing.T) {
	u := newUpstream(t, func(_ string, w http.ResponseWriter) {
		reply(w, "<think>they like music</think>\n Try the open mic tonight.")
	})
	a := New(Config{Endpoint: u.server.URL, APIKey: "sk-test", Models: []string{"model-a"}})

	history := make([]Message, 0, 12)
	for i := 0; i < 12; i++ {
		role := "user"
		if i%2 == 1 {
			role = "bot"
		}
		history = append(history, Message{Role: role, Text: fmt.Sprintf("turn %d", i)})
	}

	resp := a.Ask(context.Background(), Request{Query: "what should I do?", History: history}, StudentContext{
		Student: &models.StudentProfile{Name: "Meera", Department: "Physics", Year: 2},
	})
	assert.Equal(t, "model", resp.Source)
	assert.Equal(t, "Try the open mic tonight.", resp.Message)
	assert.Nil(t, resp.FollowUp)

	require.Len(t, u.requests, 1)
	req := u.requests[0]
	assert.Equal(t, "model-a", req.Model)
	assert.Equal(t, "Bearer sk-test", u.headers[0].Get("Authorization"))

	// system + last 10 history turns + query
	require.Len(t, req.Messages, 12)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "Department: Physics")
	assert.Equal(t, "turn 2", req.Messages[1].Content)
	assert.Equal(t, "user", req.Messages[1].Role)
	assert.Equal(t, "assistant", req.Messages[2].Role)
	assert.Equal(t, "what should I do?", req.Messages[11].Content)
}

func TestAsk_TriesModelsInOrder(t *testing.T) {
	u := newUpstream(t, func(model string, w http.ResponseWriter) {
		if model == "broken" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		reply(w, "from "+model)
	})
	a := New(Config{Endpoint: u.server.URL, APIKey: "k", Models: []string{"broken", "working"}})

	resp := a.Ask(context.Background(), Request{Query: "hi"}, StudentContext{})
	assert.Equal(t, "from working", resp.Message)
	require.Len(t, u.requests, 2)
	assert.Equal(t, "broken", u.requests[0].Model)
	assert.Equal(t, "working", u.requests[1].Model)
}

func TestAsk_AllModelsFailUsesFallback(t *testing.T) {
	u := newUpstream(t, func(_ string, w http.ResponseWriter) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	a := New(Config{Endpoint: u.server.URL, APIKey: "k", Models: []string{"a", "b"}})

	resp := a.Ask(context.Background(), Request{Query: "any workshop?"}, StudentContext{})
	assert.Equal(t, "fallback", resp.Source)
	assert.Equal(t, Fallback("workshop"), resp.Message)
	assert.Equal(t, int32(2), u.hits.Load())
}

func TestAsk_EmptyChoicesFallsThrough(t *testing.T) {
	u := newUpstream(t, func(_ string, w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	a := New(Config{Endpoint: u.server.URL, APIKey: "k", Models: []string{"a"}})

	resp := a.Ask(context.Background(), Request{Query: "hello"}, StudentContext{})
	assert.Equal(t, "fallback", resp.Source)
}

func TestAsk_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	u := newUpstream(t, func(_ string, w http.ResponseWriter) {
		w.WriteHeader(http.StatusBadGateway)
	})
	a := New(Config{Endpoint: u.server.URL, APIKey: "k", Models: []string{"a"}})

	for i := 0; i < 5; i++ {
		a.Ask(context.Background(), Request{Query: "q"}, StudentContext{})
	}
	require.Equal(t, int32(5), u.hits.Load())

	_, _, err := a.complete(context.Background(), Request{Query: "q"}, StudentContext{})
	assert.ErrorIs(t, err, drift.ErrExternalServiceUnavailable)
	assert.Contains(t, err.Error(), "circuit open")
	assert.Equal(t, int32(5), u.hits.Load())
}

func TestAsk_TimeoutUsesFallback(t *testing.T) {
	u := newUpstream(t, func(_ string, w http.ResponseWriter) {
		time.Sleep(200 * time.Millisecond)
		reply(w, "too late")
	})
	a := New(Config{Endpoint: u.server.URL, APIKey: "k", Models: []string{"slow"}, Timeout: 20 * time.Millisecond})

	resp := a.Ask(context.Background(), Request{Query: "hi"}, StudentContext{})
	assert.Equal(t, "fallback", resp.Source)
}

func TestBuildMessages_NoSystemRole(t *testing.T) {
	msgs := buildMessages("SYS", Request{Query: "Q", History: []Message{{Role: "result", Text: "R"}}}, false)
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "[Instructions]\nSYS\n[End Instructions]\n\nQ", msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, chatMessage{Role: "user", Content: "Q"}, msgs[2])
}

func TestAsk_GemmaModelsGetInstructionsInUserTurn(t *testing.T) {
	u := newUpstream(t, func(_ string, w http.ResponseWriter) { reply(w, "ok") })
	a := New(Config{Endpoint: u.server.URL, APIKey: "k", Models: []string{"google/gemma-3:free"}})

	a.Ask(context.Background(), Request{Query: "hi"}, StudentContext{})
	require.Len(t, u.requests, 1)
	assert.Equal(t, "user", u.requests[0].Messages[0].Role)
	assert.Contains(t, u.requests[0].Messages[0].Content, "[Instructions]")
}

func TestStripThinking(t *testing.T) {
	assert.Equal(t, "answer", StripThinking("<think>a\nb</think>answer"))
	assert.Equal(t, "x  y", StripThinking("x <think>1</think> y"))
	assert.Equal(t, "plain", StripThinking("  plain "))
}

func TestFallback(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"What's on this EVENING?", fallbackAnswers[0].answer},
		{"any workshop", fallbackAnswers[1].answer},
		{"is it free", fallbackAnswers[2].answer},
		{"I'm bored", fallbackAnswers[3].answer},
		{"hello", fallbackDefault},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Fallback(tt.query))
		})
	}
}

func TestDescribeStudent(t *testing.T) {
	assert.Empty(t, DescribeStudent(StudentContext{}))

	bubble := 15.9
	text := DescribeStudent(StudentContext{
		Student: &models.StudentProfile{Name: "Aryan", Department: "Computer Science", Year: 2, Interests: []string{"AI", "Music"}},
		Record:  &models.ExplorationRecord{DepartmentsVisited: []string{"Computer Science", "Mathematics"}},
		Bubble:  &bubble,
	})
	assert.Contains(t, text, "- Interests: AI, Music")
	assert.Contains(t, text, "- Departments visited: Computer Science, Mathematics")
	assert.Contains(t, text, "- Bubble: 15.9% of campus explored")
}

func TestTrimHistory(t *testing.T) {
	long := Message{Role: "user", Text: strings.Repeat("campus drift ", 2000)}
	short := []Message{{Role: "user", Text: "any talks today?"}, {Role: "bot", Text: "Try the open mic."}}

	kept := trimHistory(append([]Message{long}, short...), MaxHistoryTokens)
	assert.Equal(t, short, kept)

	assert.Equal(t, short, trimHistory(short, MaxHistoryTokens))
	assert.Empty(t, trimHistory([]Message{long}, MaxHistoryTokens))
}

func TestCountTokens(t *testing.T) {
	assert.Zero(t, countTokens(""))
	assert.Greater(t, countTokens("Where is the canteen?"), 0)
	assert.Greater(t, countTokens(strings.Repeat("drift ", 100)), countTokens("drift"))
}

func TestAsk_RedactsPersonalDataUpstream(t *testing.T) {
	u := newUpstream(t, func(_ string, w http.ResponseWriter) { reply(w, "ok") })
	a := New(Config{Endpoint: u.server.URL, APIKey: "k", Models: []string{"m"}})

	a.Ask(context.Background(), Request{
		Query:   "Can the club email me at meera@campus.edu?",
		History: []Message{{Role: "user", Text: "my number is 555-123-4567"}},
	}, StudentContext{})

	require.Len(t, u.requests, 1)
	msgs := u.requests[0].Messages
	assert.Equal(t, "my number is [PHONE]", msgs[1].Content)
	assert.Equal(t, "Can the club email me at [EMAIL]?", msgs[2].Content)
}
