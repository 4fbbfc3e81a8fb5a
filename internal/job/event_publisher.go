package job

import (
	"context"
	"time"

	"payengine/internal/model"
	"payengine/internal/repository"

	"go.uber.org/zap"
)

// MessageSender 由 mq.Publisher 实现
type MessageSender interface {
	SendMessage(topic, key, value string) error
}

// EventPublisher 定时扫描发件箱，把处理事件投递到 Kafka
//
// 发送失败的消息保持 PENDING 并累加重试次数，
// 达到 maxRetry 后标记为 FAILED，不再投递。
type EventPublisher struct {
	outbox    *repository.OutboxRepository
	sender    MessageSender
	logger    *zap.Logger
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
	maxRetry  int
}

func NewEventPublisher(outbox *repository.OutboxRepository, sender MessageSender, maxRetry int, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetry < 1 {
		maxRetry = 1
	}
	return &EventPublisher{
		outbox:    outbox,
		sender:    sender,
		logger:    logger.Named("event_publisher"),
		stopCh:    make(chan struct{}),
		interval:  100 * time.Millisecond,
		batchSize: 100,
		maxRetry:  maxRetry,
	}
}

// Start 阻塞运行，直到 ctx 取消或调用 Stop
func (p *EventPublisher) Start(ctx context.Context) {
	p.logger.Info("事件投递任务启动")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("收到停止信号，任务退出")
			return
		case <-p.stopCh:
			p.logger.Info("任务停止")
			return
		case <-ticker.C:
			p.processPendingMessages()
		}
	}
}

func (p *EventPublisher) Stop() {
	close(p.stopCh)
}

// Flush 投递剩余的全部消息，Start 退出后调用
//
// 每轮要么发送成功，要么累加重试次数，消息最终都会离开 PENDING。
func (p *EventPublisher) Flush(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		failed, total := p.processPendingMessages()
		if total == 0 {
			return nil
		}
		if failed == 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.interval):
		}
	}
}

// processPendingMessages 返回本轮失败数和处理总数
func (p *EventPublisher) processPendingMessages() (int, int) {
	messages := p.outbox.GetPendingMessages(p.batchSize)
	failed := 0
	for _, msg := range messages {
		if !p.sendMessage(msg) {
			failed++
		}
	}
	return failed, len(messages)
}

func (p *EventPublisher) sendMessage(msg *model.OutboxMessage) bool {
	err := p.sender.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		p.outbox.UpdateStatus(msg.ID, model.OutboxStatusSent)
		p.logger.Debug("消息发送成功",
			zap.Int64("id", msg.ID),
			zap.String("topic", msg.Topic),
			zap.String("key", msg.MessageKey),
		)
		return true
	}

	p.logger.Warn("消息发送失败", zap.Int64("id", msg.ID), zap.Error(err))
	p.outbox.IncrementRetryCount(msg.ID)

	if msg.RetryCount+1 >= p.maxRetry {
		p.outbox.MarkAsFailed(msg.ID)
		p.logger.Error("消息超过最大重试次数，标记为失败", zap.Int64("id", msg.ID))
	}
	return false
}
