package service

import (
	"context"

	"payengine/internal/model"
)

// Engine 把输入记录交给 Processor
//
// Apply 只在基础设施故障（上下文取消、去重存储不可用）时返回错误，
// 业务拒绝通过 Observer 报告，不会中断输入流。
type Engine interface {
	Apply(ctx context.Context, tx model.Transaction) error
	// Close 等待所有已提交的记录处理完毕
	Close() error
	// Accounts 在 Close 之后调用
	Accounts() []model.Account
}

// SequentialEngine 单线程、严格按输入顺序处理
type SequentialEngine struct {
	processor *Processor
	observer  Observer
}

func NewSequentialEngine(processor *Processor, observer Observer) *SequentialEngine {
	if processor == nil {
		processor = NewInMemoryProcessor()
	}
	if observer == nil {
		observer = Observers{}
	}
	return &SequentialEngine{
		processor: processor,
		observer:  observer,
	}
}

func (e *SequentialEngine) Apply(ctx context.Context, tx model.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.observer.Observe(e.processor.Process(tx))
	return nil
}

func (e *SequentialEngine) Close() error {
	return nil
}

// Accounts 按账户创建顺序返回
func (e *SequentialEngine) Accounts() []model.Account {
	return e.processor.Accounts()
}
