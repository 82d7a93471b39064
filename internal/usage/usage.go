package usage

import (
	"sync"
	"time"

	"gptbot/pkg/config"
)

// Clock подменяется в тестах для детерминированной проверки сброса окон.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func SystemClock() Clock {
	return systemClock{}
}

type Reason string

const (
	ReasonUnauthorized      Reason = "unauthorized"
	ReasonRateLimit         Reason = "rate_limit"
	ReasonHourlyLimit       Reason = "hourly_limit"
	ReasonDailyMessageLimit Reason = "daily_message_limit"
	ReasonDailyTokenLimit   Reason = "daily_token_limit"
)

type Decision struct {
	Allowed bool
	Reason  Reason
}

type DailyWindow struct {
	Messages int
	Tokens   int
	Date     string
}

type HourlyWindow struct {
	Messages int
	Hour     string
}

type MinuteWindow struct {
	Messages int
	Minute   string
}

type Record struct {
	Daily  DailyWindow
	Hourly HourlyWindow
	Minute MinuteWindow
}

type Ledger struct {
	mu      sync.Mutex
	cfg     *config.Config
	clock   Clock
	records map[int64]*Record
}

func NewLedger(cfg *config.Config, clock Clock) *Ledger {
	return &Ledger{
		cfg:     cfg,
		clock:   clock,
		records: make(map[int64]*Record),
	}
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func hourKey(t time.Time) string {
	return t.Format("2006-01-02 15")
}

func minuteKey(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

func (l *Ledger) record(userID int64) *Record {
	rec, ok := l.records[userID]
	if !ok {
		now := l.clock.Now()
		rec = &Record{
			Daily:  DailyWindow{Date: dayKey(now)},
			Hourly: HourlyWindow{Hour: hourKey(now)},
			Minute: MinuteWindow{Minute: minuteKey(now)},
		}
		l.records[userID] = rec
	}
	return rec
}

// resetStale обнуляет окна, чей ключ периода не совпадает с текущим.
func (l *Ledger) resetStale(rec *Record) {
	now := l.clock.Now()

	if day := dayKey(now); rec.Daily.Date != day {
		rec.Daily = DailyWindow{Date: day}
	}
	if hour := hourKey(now); rec.Hourly.Hour != hour {
		rec.Hourly = HourlyWindow{Hour: hour}
	}
	if minute := minuteKey(now); rec.Minute.Minute != minute {
		rec.Minute = MinuteWindow{Minute: minute}
	}
}

func (l *Ledger) CheckAdmission(userID int64) Decision {
	if l.cfg.AuthorizedUserID != 0 && userID != l.cfg.AuthorizedUserID {
		return Decision{Reason: ReasonUnauthorized}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.record(userID)
	l.resetStale(rec)

	if rec.Minute.Messages >= l.cfg.RateLimitPerMinute {
		return Decision{Reason: ReasonRateLimit}
	}
	if rec.Hourly.Messages >= l.cfg.HourlyMessageLimit {
		return Decision{Reason: ReasonHourlyLimit}
	}
	if rec.Daily.Messages >= l.cfg.DailyMessageLimit {
		return Decision{Reason: ReasonDailyMessageLimit}
	}
	if rec.Daily.Tokens >= l.cfg.DailyTokenLimit {
		return Decision{Reason: ReasonDailyTokenLimit}
	}

	return Decision{Allowed: true}
}

// Record вызывается только после успешного ответа модели.
func (l *Ledger) Record(userID int64, tokens int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.record(userID)
	l.resetStale(rec)

	rec.Daily.Messages++
	rec.Daily.Tokens += tokens
	rec.Hourly.Messages++
	rec.Minute.Messages++
}

func (l *Ledger) Snapshot(userID int64) Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.record(userID)
	l.resetStale(rec)

	return *rec
}
