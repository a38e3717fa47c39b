package game

import (
	"sync"
)

type fakeWallet struct {
	mu      sync.Mutex
	balance int64
	userID  string
	writes  []int64
}

func newWallet(balance int64) *fakeWallet {
	return &fakeWallet{balance: balance, userID: "me"}
}

func (w *fakeWallet) Balance() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance
}

func (w *fakeWallet) UpdateBalance(balance int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balance = balance
	w.writes = append(w.writes, balance)
}

func (w *fakeWallet) UserID() string {
	return w.userID
}

type recordingHub struct {
	mu       sync.Mutex
	messages []Message
}

func (h *recordingHub) Broadcast(message interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := message.(Message); ok {
		h.messages = append(h.messages, m)
	}
}

func (h *recordingHub) count(msgType string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, m := range h.messages {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []Notification
}

func (r *recordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recordingNotifier) levels() []NotificationLevel {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]NotificationLevel, 0, len(r.notifications))
	for _, n := range r.notifications {
		out = append(out, n.Level)
	}
	return out
}

func (r *recordingNotifier) last() Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notifications) == 0 {
		return Notification{}
	}
	return r.notifications[len(r.notifications)-1]
}
