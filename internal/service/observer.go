package service

import (
	"sync"

	"payengine/internal/model"

	"go.uber.org/zap"
)

// Observer 接收每条记录的处理结果
// 分片模式下会被多个 worker 并发调用，实现必须并发安全
type Observer interface {
	Observe(result Result)
}

type ObserverFunc func(result Result)

func (f ObserverFunc) Observe(result Result) {
	f(result)
}

// Observers 依次通知多个观察者
type Observers []Observer

func (o Observers) Observe(result Result) {
	for _, observer := range o {
		if observer != nil {
			observer.Observe(result)
		}
	}
}

// LogObserver 受理记录打 debug，拒绝记录打 warn
type LogObserver struct {
	logger *zap.Logger
}

func NewLogObserver(logger *zap.Logger) *LogObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Observe(result Result) {
	tx := result.Transaction
	fields := []zap.Field{
		zap.String("type", string(tx.Type)),
		zap.Uint16("client", tx.ClientID),
		zap.Uint32("tx", tx.TxID),
	}
	if tx.Type.CarriesAmount() {
		fields = append(fields, zap.String("amount", tx.Amount.String()))
	}

	if result.Accepted() {
		o.logger.Debug("交易已受理", fields...)
		return
	}

	fields = append(fields,
		zap.String("reason", string(result.Rejection.Kind)),
		zap.Error(result.Rejection.Err),
	)
	o.logger.Warn("交易被拒绝", fields...)
}

// Stats 一次运行的处理统计
type Stats struct {
	Processed      int                  `json:"processed"`
	Accepted       int                  `json:"accepted"`
	Rejected       int                  `json:"rejected"`
	Malformed      int                  `json:"malformed"`
	AcceptedByType map[model.TxType]int `json:"accepted_by_type"`
	RejectedByKind map[RejectKind]int   `json:"rejected_by_kind"`
}

// StatsCollector 汇总处理结果和格式错误的输入行
type StatsCollector struct {
	mu    sync.Mutex
	stats Stats
}

func NewStatsCollector() *StatsCollector {
	return &StatsCollector{
		stats: Stats{
			AcceptedByType: make(map[model.TxType]int),
			RejectedByKind: make(map[RejectKind]int),
		},
	}
}

func (c *StatsCollector) Observe(result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Processed++
	if result.Accepted() {
		c.stats.Accepted++
		c.stats.AcceptedByType[result.Transaction.Type]++
		return
	}
	c.stats.Rejected++
	c.stats.RejectedByKind[result.Rejection.Kind]++
}

// RecordMalformed 输入层丢弃的行不会到达 Processor，单独计数
func (c *StatsCollector) RecordMalformed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Malformed++
}

func (c *StatsCollector) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.stats
	out.AcceptedByType = make(map[model.TxType]int, len(c.stats.AcceptedByType))
	for k, v := range c.stats.AcceptedByType {
		out.AcceptedByType[k] = v
	}
	out.RejectedByKind = make(map[RejectKind]int, len(c.stats.RejectedByKind))
	for k, v := range c.stats.RejectedByKind {
		out.RejectedByKind[k] = v
	}
	return out
}
