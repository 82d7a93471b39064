package gate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gptbot/internal/conversation"
	"gptbot/internal/usage"
	"gptbot/pkg/config"
)

type fakeCompleter struct {
	reply       string
	tokens      int
	err         error
	calls       int
	lastText    string
	lastHistory []conversation.Entry
}

func (f *fakeCompleter) Complete(_ context.Context, history []conversation.Entry, message string) (string, int, error) {
	f.calls++
	f.lastText = message
	f.lastHistory = history
	if f.err != nil {
		return "", 0, f.err
	}
	return f.reply, f.tokens, nil
}

func testConfig() *config.Config {
	return &config.Config{
		DailyMessageLimit:  100,
		DailyTokenLimit:    50000,
		HourlyMessageLimit: 100,
		RateLimitPerMinute: 100,
		MaxMessageLength:   4000,
		MaxHistory:         10,
		ChunkDelayMs:       500,
	}
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func newTestGate(cfg *config.Config, completer Completer) (*Gate, *usage.Ledger, *conversation.Buffer) {
	clock := fixedClock{now: time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)}
	ledger := usage.NewLedger(cfg, clock)
	conversations := conversation.NewBuffer(cfg.MaxHistory)
	return NewGate(cfg, ledger, conversations, completer), ledger, conversations
}

func TestHandleDelivered(t *testing.T) {
	cfg := testConfig()
	completer := &fakeCompleter{reply: "Привет! Чем помочь?", tokens: 42}
	g, ledger, conversations := newTestGate(cfg, completer)

	result := g.Handle(context.Background(), 1, "привет")

	require.Equal(t, StatusDelivered, result.Status)
	require.Equal(t, []string{"Привет! Чем помочь?"}, result.Chunks)
	assert.Equal(t, 500*time.Millisecond, result.ChunkDelay)
	assert.Empty(t, result.Warning)

	assert.Equal(t, 1, completer.calls)
	assert.Equal(t, "привет", completer.lastText)
	assert.Empty(t, completer.lastHistory)

	rec := ledger.Snapshot(1)
	assert.Equal(t, 1, rec.Daily.Messages)
	assert.Equal(t, 42, rec.Daily.Tokens)

	history := conversations.History(1)
	require.Len(t, history, 2)
	assert.Equal(t, conversation.Entry{Role: conversation.RoleUser, Content: "привет"}, history[0])
	assert.Equal(t, conversation.Entry{Role: conversation.RoleAssistant, Content: "Привет! Чем помочь?"}, history[1])
}

func TestHandlePassesAccumulatedHistory(t *testing.T) {
	completer := &fakeCompleter{reply: "ответ", tokens: 1}
	g, _, _ := newTestGate(testConfig(), completer)

	g.Handle(context.Background(), 1, "первый вопрос")
	g.Handle(context.Background(), 1, "второй вопрос")

	require.Len(t, completer.lastHistory, 2)
	assert.Equal(t, "первый вопрос", completer.lastHistory[0].Content)
	assert.Equal(t, "ответ", completer.lastHistory[1].Content)
	assert.Equal(t, "второй вопрос", completer.lastText)
}

func TestHandleRejectsLongMessage(t *testing.T) {
	cfg := testConfig()
	cfg.MaxMessageLength = 10
	completer := &fakeCompleter{reply: "ответ"}
	g, ledger, conversations := newTestGate(cfg, completer)

	result := g.Handle(context.Background(), 1, strings.Repeat("a", 11))

	assert.Equal(t, StatusRejectedLength, result.Status)
	assert.Equal(t, 0, completer.calls)
	assert.Equal(t, 0, ledger.Snapshot(1).Daily.Messages)
	assert.Empty(t, conversations.History(1))
}

func TestHandleRejectsOverRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 1
	completer := &fakeCompleter{reply: "ответ", tokens: 1}
	g, _, _ := newTestGate(cfg, completer)

	first := g.Handle(context.Background(), 1, "раз")
	require.Equal(t, StatusDelivered, first.Status)

	second := g.Handle(context.Background(), 1, "два")
	assert.Equal(t, StatusRejectedUsage, second.Status)
	assert.Equal(t, usage.ReasonRateLimit, second.Reason)
	assert.Equal(t, 1, completer.calls)
}

func TestHandleRejectsUnauthorized(t *testing.T) {
	cfg := testConfig()
	cfg.AuthorizedUserID = 42
	completer := &fakeCompleter{reply: "ответ"}
	g, _, _ := newTestGate(cfg, completer)

	result := g.Handle(context.Background(), 7, "привет")

	assert.Equal(t, StatusRejectedUsage, result.Status)
	assert.Equal(t, usage.ReasonUnauthorized, result.Reason)
	assert.Equal(t, 0, completer.calls)
}

func TestCompletionFailureLeavesNoTrace(t *testing.T) {
	cfg := testConfig()
	completer := &fakeCompleter{reply: "ответ", tokens: 10}
	g, ledger, conversations := newTestGate(cfg, completer)

	g.Handle(context.Background(), 1, "до сбоя")

	before := ledger.Snapshot(1)
	historyBefore := conversations.History(1)

	completer.err = &openai.APIError{HTTPStatusCode: http.StatusInternalServerError}
	result := g.Handle(context.Background(), 1, "во время сбоя")

	require.Equal(t, StatusCompletionFailed, result.Status)
	assert.Equal(t, FailureUpstreamServer, result.Failure)
	assert.Error(t, result.Err)

	assert.Equal(t, before, ledger.Snapshot(1))
	assert.Equal(t, historyBefore, conversations.History(1))
}

func TestHandleSplitsLongReply(t *testing.T) {
	cfg := testConfig()
	cfg.MaxMessageLength = 50

	sentences := make([]string, 10)
	for i := range sentences {
		sentences[i] = strings.Repeat("a", 20)
	}
	completer := &fakeCompleter{reply: strings.Join(sentences, ". "), tokens: 1}
	g, _, _ := newTestGate(cfg, completer)

	result := g.Handle(context.Background(), 1, "вопрос")

	require.Equal(t, StatusDelivered, result.Status)
	require.Greater(t, len(result.Chunks), 1)
	for _, chunk := range result.Chunks {
		assert.LessOrEqual(t, len(chunk), 50)
	}
}

func TestUsageWarningAtNinetyPercent(t *testing.T) {
	cfg := testConfig()
	cfg.DailyMessageLimit = 10
	completer := &fakeCompleter{reply: "ответ", tokens: 1}
	g, _, _ := newTestGate(cfg, completer)

	var result Result
	for i := 0; i < 8; i++ {
		result = g.Handle(context.Background(), 1, fmt.Sprintf("вопрос %d", i))
		require.Equal(t, StatusDelivered, result.Status)
		assert.Empty(t, result.Warning)
	}

	// Девятое сообщение достигает 90% дневного лимита.
	result = g.Handle(context.Background(), 1, "девятый вопрос")
	require.Equal(t, StatusDelivered, result.Status)
	assert.NotEmpty(t, result.Warning)
}

func TestUsageWarningOnTokens(t *testing.T) {
	cfg := testConfig()
	cfg.DailyTokenLimit = 10000
	completer := &fakeCompleter{reply: "ответ", tokens: 9500}
	g, _, _ := newTestGate(cfg, completer)

	result := g.Handle(context.Background(), 1, "вопрос")

	require.Equal(t, StatusDelivered, result.Status)
	assert.Contains(t, result.Warning, "9500")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"api 401", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}, FailureUpstreamAuth},
		{"api 429", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, FailureUpstreamRateLimited},
		{"api 500", &openai.APIError{HTTPStatusCode: http.StatusInternalServerError}, FailureUpstreamServer},
		{"api 503", &openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable}, FailureUpstreamServer},
		{"api 400", &openai.APIError{HTTPStatusCode: http.StatusBadRequest}, FailureUnknown},
		{"wrapped api error", fmt.Errorf("запрос: %w", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}), FailureUpstreamAuth},
		{"deadline", context.DeadlineExceeded, FailureUpstreamTimeout},
		{"wrapped deadline", fmt.Errorf("запрос: %w", context.DeadlineExceeded), FailureUpstreamTimeout},
		{"plain error", errors.New("что-то сломалось"), FailureUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
