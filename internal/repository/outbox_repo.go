package repository

import (
	"sync"
	"time"

	"payengine/internal/model"
)

// OutboxRepository 内存版消息发件箱
// 分片 worker 和发送任务会并发访问，全部操作加锁
type OutboxRepository struct {
	mu       sync.Mutex
	messages []*model.OutboxMessage
	byID     map[int64]*model.OutboxMessage
	nextID   int64
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{
		byID: make(map[int64]*model.OutboxMessage),
	}
}

func (r *OutboxRepository) Create(msg *model.OutboxMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	msg.ID = r.nextID
	if msg.Status == "" {
		msg.Status = model.OutboxStatusPending
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	r.messages = append(r.messages, msg)
	r.byID[msg.ID] = msg
}

// GetPendingMessages 按写入顺序取最多 limit 条待发送消息的副本
func (r *OutboxRepository) GetPendingMessages(limit int) []*model.OutboxMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.OutboxMessage
	for _, msg := range r.messages {
		if len(out) >= limit {
			break
		}
		if msg.Status == model.OutboxStatusPending {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out
}

func (r *OutboxRepository) UpdateStatus(id int64, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg, ok := r.byID[id]; ok {
		msg.Status = status
	}
}

func (r *OutboxRepository) IncrementRetryCount(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg, ok := r.byID[id]; ok {
		msg.RetryCount++
	}
}

func (r *OutboxRepository) MarkAsFailed(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg, ok := r.byID[id]; ok {
		msg.Status = model.OutboxStatusFailed
	}
}

func (r *OutboxRepository) CountByStatus(status string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, msg := range r.messages {
		if msg.Status == status {
			n++
		}
	}
	return n
}
