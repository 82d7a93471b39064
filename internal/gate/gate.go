package gate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"gptbot/internal/conversation"
	"gptbot/internal/splitter"
	"gptbot/internal/usage"
	"gptbot/pkg/config"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// Completer выполняет внешний вызов модели, единственную долгую операцию запроса.
type Completer interface {
	Complete(ctx context.Context, history []conversation.Entry, message string) (string, int, error)
}

type Status int

const (
	StatusDelivered Status = iota
	StatusRejectedLength
	StatusRejectedUsage
	StatusCompletionFailed
)

type FailureKind int

const (
	FailureUnknown FailureKind = iota
	FailureUpstreamAuth
	FailureUpstreamRateLimited
	FailureUpstreamServer
	FailureUpstreamTimeout
)

type Result struct {
	Status     Status
	Reason     usage.Reason
	Failure    FailureKind
	Err        error
	Chunks     []string
	ChunkDelay time.Duration
	Warning    string
}

type Gate struct {
	cfg           *config.Config
	ledger        *usage.Ledger
	conversations *conversation.Buffer
	completer     Completer

	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex
}

func NewGate(cfg *config.Config, ledger *usage.Ledger, conversations *conversation.Buffer, completer Completer) *Gate {
	return &Gate{
		cfg:           cfg,
		ledger:        ledger,
		conversations: conversations,
		completer:     completer,
		userLocks:     make(map[int64]*sync.Mutex),
	}
}

func (g *Gate) userLock(userID int64) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()

	lock, ok := g.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		g.userLocks[userID] = lock
	}
	return lock
}

// Handle проводит один запрос через проверку длины, проверку лимитов,
// вызов модели и запись результата. Запросы одного пользователя
// сериализуются, разные пользователи идут параллельно. Отказ или сбой
// не оставляет следа ни в счетчиках, ни в истории.
func (g *Gate) Handle(ctx context.Context, userID int64, text string) Result {
	lock := g.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if len(text) > g.cfg.MaxMessageLength {
		return Result{Status: StatusRejectedLength}
	}

	decision := g.ledger.CheckAdmission(userID)
	if !decision.Allowed {
		return Result{Status: StatusRejectedUsage, Reason: decision.Reason}
	}

	history := g.conversations.History(userID)

	reply, tokens, err := g.completer.Complete(ctx, history, text)
	if err != nil {
		logrus.Errorf("Сбой запроса к модели для пользователя %d: %v", userID, err)
		return Result{Status: StatusCompletionFailed, Failure: Classify(err), Err: err}
	}

	g.ledger.Record(userID, tokens)
	g.conversations.Append(userID, conversation.RoleUser, text)
	g.conversations.Append(userID, conversation.RoleAssistant, reply)

	return Result{
		Status:     StatusDelivered,
		Chunks:     splitter.Split(reply, g.cfg.MaxMessageLength),
		ChunkDelay: time.Duration(g.cfg.ChunkDelayMs) * time.Millisecond,
		Warning:    g.usageWarning(userID),
	}
}

// usageWarning возвращает предупреждение, если израсходовано 90% дневного
// лимита сообщений или токенов. Срабатывает на каждом подходящем запросе.
func (g *Gate) usageWarning(userID int64) string {
	rec := g.ledger.Snapshot(userID)

	messageWarning := rec.Daily.Messages*10 >= g.cfg.DailyMessageLimit*9
	tokenWarning := rec.Daily.Tokens*10 >= g.cfg.DailyTokenLimit*9
	if !messageWarning && !tokenWarning {
		return ""
	}

	return fmt.Sprintf("⚠️ Вы приближаетесь к дневному лимиту: %d/%d сообщений, %d/%d токенов за сегодня.",
		rec.Daily.Messages, g.cfg.DailyMessageLimit, rec.Daily.Tokens, g.cfg.DailyTokenLimit)
}

// Classify относит ошибку вызова модели к категории по HTTP-статусу
// либо признаку таймаута.
func Classify(err error) FailureKind {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized:
			return FailureUpstreamAuth
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return FailureUpstreamRateLimited
		case apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return FailureUpstreamServer
		}
		return FailureUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureUpstreamTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureUpstreamTimeout
	}

	return FailureUnknown
}
