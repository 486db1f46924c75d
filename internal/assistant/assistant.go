// Package assistant answers campus questions through an OpenAI-compatible
// chat endpoint and degrades to canned answers when the backend is down.
package assistant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/thebtf/campus-drift/internal/drift"
	"github.com/thebtf/campus-drift/internal/metrics"
	"github.com/thebtf/campus-drift/internal/privacy"
	"github.com/thebtf/campus-drift/pkg/models"
)

const (
	// MaxHistoryMessages is how many prior chat messages are sent upstream.
	MaxHistoryMessages = 10

	// DefaultTimeout bounds one upstream call.
	DefaultTimeout = 30 * time.Second

	breakerName = "assistant-api"
	maxTokens   = 300
)

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Config configures the assistant client.
type Config struct {
	Endpoint string
	APIKey   string
	Models   []string
	Timeout  time.Duration
}

// Message is one prior turn of the conversation. Roles "bot" and "result"
// are the assistant's own turns; anything else is the student.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Request is a question for the assistant.
type Request struct {
	Query     string    `json:"query"`
	StudentID string    `json:"student_id,omitempty"`
	History   []Message `json:"history"`
}

// Response is the assistant's answer. FollowUp is set on fallback answers.
type Response struct {
	FollowUp *string `json:"follow_up"`
	Message  string  `json:"message"`
	Source   string  `json:"source"`
}

// StudentContext is what the assistant knows about the asking student.
// Any field may be nil.
type StudentContext struct {
	Student *models.StudentProfile
	Record  *models.ExplorationRecord
	Bubble  *float64
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Assistant is a chat client with a circuit breaker in front of the backend.
type Assistant struct {
	client   *http.Client
	cb       *gobreaker.CircuitBreaker[string]
	endpoint string
	apiKey   string
	models   []string
	timeout  time.Duration
}

// New creates an assistant. An empty API key leaves the assistant in
// fallback-only mode.
func New(cfg Config) *Assistant {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Assistant{
		client:   &http.Client{Timeout: timeout},
		cb:       cb,
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		models:   cfg.Models,
		timeout:  timeout,
	}
}

// Ask answers the request. It never fails: when no model answers the
// keyword fallback is returned.
func (a *Assistant) Ask(ctx context.Context, req Request, sc StudentContext) *Response {
	answer, model, err := a.complete(ctx, req, sc)
	if err == nil {
		log.Debug().Str("model", model).Msg("Assistant answered")
		metrics.RecordAssistantAnswer("model")
		return &Response{Message: answer, Source: "model"}
	}

	log.Warn().Err(err).Msg("Assistant unavailable, using fallback")
	metrics.RecordAssistantAnswer("fallback")
	followUp := FallbackFollowUp
	return &Response{
		Message:  Fallback(req.Query),
		FollowUp: &followUp,
		Source:   "fallback",
	}
}

// complete tries each configured model in order and returns the first
// answer. All failures are reported as drift.ErrExternalServiceUnavailable.
func (a *Assistant) complete(ctx context.Context, req Request, sc StudentContext) (string, string, error) {
	if a.apiKey == "" {
		return "", "", fmt.Errorf("no api key configured: %w", drift.ErrExternalServiceUnavailable)
	}
	if len(a.models) == 0 {
		return "", "", fmt.Errorf("no models configured: %w", drift.ErrExternalServiceUnavailable)
	}

	system := SystemPrompt + DescribeStudent(sc)
	var lastErr error
	for _, model := range a.models {
		messages := buildMessages(system, req, !strings.Contains(model, "gemma"))
		answer, err := a.cb.Execute(func() (string, error) {
			return a.call(ctx, model, messages)
		})
		if err == nil {
			metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
			return answer, model, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
			return "", "", fmt.Errorf("circuit open: %w", drift.ErrExternalServiceUnavailable)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
		log.Debug().Err(err).Str("model", model).Msg("Assistant model failed, trying next")
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", "", fmt.Errorf("all models failed: %w: %w", drift.ErrExternalServiceUnavailable, lastErr)
}

func (a *Assistant) call(ctx context.Context, model string, messages []chatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: 0.7,
		TopP:        0.9,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("X-Title", "Campus Drift")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send chat request to %s: %w", a.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("chat API error (model=%s, status=%d): %s",
			model, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices (model=%s)", model)
	}

	answer := StripThinking(chatResp.Choices[0].Message.Content)
	if answer == "" {
		return "", fmt.Errorf("chat API returned an empty answer (model=%s)", model)
	}
	return answer, nil
}

// StripThinking removes <think> blocks some models emit before answering.
func StripThinking(s string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}

// buildMessages assembles the upstream conversation from the newest history
// that fits the token budget, with personal data redacted. Models without a
// system role get the instructions folded into the first user turn.
func buildMessages(system string, req Request, systemRole bool) []chatMessage {
	history := req.History
	if len(history) > MaxHistoryMessages {
		history = history[len(history)-MaxHistoryMessages:]
	}
	history = trimHistory(history, MaxHistoryTokens)

	query := privacy.Redact(req.Query)

	messages := make([]chatMessage, 0, len(history)+2)
	if systemRole {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	} else {
		messages = append(messages, chatMessage{
			Role:    "user",
			Content: "[Instructions]\n" + system + "\n[End Instructions]\n\n" + query,
		})
	}
	for _, m := range history {
		role := "user"
		if m.Role == "bot" || m.Role == "result" {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: privacy.Redact(m.Text)})
	}
	return append(messages, chatMessage{Role: "user", Content: query})
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
