package conversation

import (
	"sync"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Entry struct {
	Role    string
	Content string
}

// Buffer хранит историю диалога в памяти процесса, по одному срезу на
// пользователя. Записи добавляются строго парами user/assistant.
type Buffer struct {
	mu           sync.Mutex
	maxExchanges int
	histories    map[int64][]Entry
}

func NewBuffer(maxExchanges int) *Buffer {
	return &Buffer{
		maxExchanges: maxExchanges,
		histories:    make(map[int64][]Entry),
	}
}

func (b *Buffer) History(userID int64) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	history := b.histories[userID]
	out := make([]Entry, len(history))
	copy(out, history)
	return out
}

func (b *Buffer) Append(userID int64, role, content string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	history := append(b.histories[userID], Entry{Role: role, Content: content})

	// Вытесняем самую старую пару целиком, никогда половину.
	if len(history) > b.maxExchanges*2 {
		history = history[2:]
	}

	b.histories[userID] = history
}

func (b *Buffer) Clear(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.histories, userID)
}

func (b *Buffer) Exchanges(userID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.histories[userID]) / 2
}

func (b *Buffer) ActiveUsers() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.histories)
}
