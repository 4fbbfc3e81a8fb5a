package service

import (
	"encoding/json"
	"strconv"
	"time"

	"payengine/internal/model"
	"payengine/internal/repository"
	"payengine/pkg/idgen"
)

// EventRecorder 把处理结果写入发件箱，由 job.EventPublisher 异步投递
//
// 消息 key 使用客户ID，同一客户的事件落在同一个分区，保证客户内有序。
type EventRecorder struct {
	outbox *repository.OutboxRepository
	topic  string
	runID  string
	now    func() time.Time
}

func NewEventRecorder(outbox *repository.OutboxRepository, topic, runID string) *EventRecorder {
	return &EventRecorder{
		outbox: outbox,
		topic:  topic,
		runID:  runID,
		now:    time.Now,
	}
}

func (r *EventRecorder) Observe(result Result) {
	tx := result.Transaction
	event := model.ProcessEvent{
		EventNo:  idgen.GenerateEventNo(),
		RunID:    r.runID,
		Type:     tx.Type,
		ClientID: tx.ClientID,
		TxID:     tx.TxID,
		Accepted: result.Accepted(),
		At:       r.now().UTC(),
	}
	if tx.Type.CarriesAmount() {
		event.Amount = tx.Amount.StringFixed(model.AmountPrecision)
	}
	if !result.Accepted() {
		event.Reason = string(result.Rejection.Kind)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	r.outbox.Create(&model.OutboxMessage{
		MessageKey: strconv.FormatUint(uint64(tx.ClientID), 10),
		Topic:      r.topic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
}
