package eventbus

import (
	"context"
	"sync"
	"time"
)

// 引擎发布的事件类型
const (
	TypeTaskClaimed       = "task.claimed"
	TypeTaskClaimRejected = "task.claim_rejected"
	TypeTaskCompleted     = "task.completed"
	TypeLevelUp           = "level.up"
	TypeStreakMilestone   = "streak.milestone"
	TypeStreaksSwept      = "streaks.swept"
)

type Event struct {
	Type      string         `json:"type"`
	UserID    string         `json:"user_id,omitempty"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Hub 进程内事件扇出；nil Hub 上的 Publish 是空操作
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]string
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]string)}
}

func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch, userID := range h.subs {
		if userID != "" && evt.UserID != "" && evt.UserID != userID {
			continue
		}
		select {
		case ch <- evt:
		default:
			// 慢消费者直接丢弃，避免阻塞结算链路
		}
	}
}

// Subscribe 订阅全部事件，ctx 结束时自动退订并关闭通道
func (h *Hub) Subscribe(ctx context.Context, buffer int) <-chan Event {
	return h.SubscribeUser(ctx, "", buffer)
}

// SubscribeUser 只订阅某个用户的事件（以及不属于任何用户的全局事件）
func (h *Hub) SubscribeUser(ctx context.Context, userID string, buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[ch] = userID
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Subscribers 当前订阅数
func (h *Hub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
