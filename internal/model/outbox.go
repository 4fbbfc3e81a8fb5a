package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxMessage 待投递到 Kafka 的处理事件
type OutboxMessage struct {
	ID         int64
	MessageKey string
	Topic      string
	Payload    string
	Status     string
	RetryCount int
	CreatedAt  time.Time
}

// ProcessEvent 每条输入记录的处理结果，作为消息体发送
type ProcessEvent struct {
	EventNo  string    `json:"event_no"`
	RunID    string    `json:"run_id"`
	Type     TxType    `json:"type"`
	ClientID uint16    `json:"client"`
	TxID     uint32    `json:"tx"`
	Amount   string    `json:"amount,omitempty"`
	Accepted bool      `json:"accepted"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}
