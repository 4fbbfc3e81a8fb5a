package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"payengine/internal/model"
	"payengine/internal/repository"

	"golang.org/x/sync/errgroup"
)

// ============================================================================
// 按客户分片的并行引擎
// ============================================================================
//
// 所有校验和变更都只涉及一个客户，所以可以按 clientID 分片：
//   - 每个分片独占自己的登记表、台账和 Processor，由一个 worker 串行处理
//   - 同一客户总是落到同一分片，客户内的相对顺序不变
//   - 交易ID全局唯一是跨分片约束，分发前先经过 TxIDGuard
//
// 被 TxIDGuard 拒绝的记录仍然送入分片，由分片创建账户并报告拒绝，
// 与单线程模式下"被引用的客户一定有账户"的行为一致。
// ============================================================================

type shardItem struct {
	tx        model.Transaction
	rejection *Rejection
}

type shard struct {
	processor *Processor
	queue     chan shardItem
}

func (s *shard) run(ctx context.Context, observer Observer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-s.queue:
			if !ok {
				return nil
			}
			if item.rejection != nil {
				s.processor.accounts.GetOrCreate(item.tx.ClientID)
				observer.Observe(Result{Transaction: item.tx, Rejection: item.rejection})
				continue
			}
			observer.Observe(s.processor.Process(item.tx))
		}
	}
}

type ShardedEngine struct {
	shards    []*shard
	guard     TxIDGuard
	observer  Observer
	group     *errgroup.Group
	groupCtx  context.Context
	closeOnce sync.Once
}

// NewShardedEngine 启动 workers 个分片协程，ctx 取消时所有分片退出
func NewShardedEngine(ctx context.Context, workers, queueSize int, guard TxIDGuard, observer Observer) (*ShardedEngine, error) {
	if workers < 1 {
		return nil, fmt.Errorf("分片数必须大于0: %d", workers)
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if guard == nil {
		guard = NewMemoryGuard()
	}
	if observer == nil {
		observer = Observers{}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	e := &ShardedEngine{
		shards:   make([]*shard, workers),
		guard:    guard,
		observer: observer,
		group:    group,
		groupCtx: groupCtx,
	}

	for i := range e.shards {
		s := &shard{
			processor: NewInMemoryProcessor(),
			queue:     make(chan shardItem, queueSize),
		}
		e.shards[i] = s
		group.Go(func() error {
			return s.run(groupCtx, observer)
		})
	}

	return e, nil
}

func (e *ShardedEngine) Apply(ctx context.Context, tx model.Transaction) error {
	item := shardItem{tx: tx}

	if tx.Type.CarriesAmount() {
		claimed, err := e.guard.Claim(ctx, tx.TxID)
		if err != nil {
			return fmt.Errorf("交易ID去重失败: %w", err)
		}
		if !claimed {
			item.rejection = reject(RejectDuplicateTransactionID, tx, repository.ErrDuplicateTransaction)
		}
	}

	s := e.shardFor(tx.ClientID)
	select {
	case s.queue <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.groupCtx.Done():
		return e.groupCtx.Err()
	}
}

func (e *ShardedEngine) Close() error {
	e.closeOnce.Do(func() {
		for _, s := range e.shards {
			close(s.queue)
		}
	})
	return e.group.Wait()
}

// Accounts 合并所有分片，按客户ID排序
func (e *ShardedEngine) Accounts() []model.Account {
	var out []model.Account
	for _, s := range e.shards {
		out = append(out, s.processor.Accounts()...)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ClientID < out[j].ClientID
	})
	return out
}

func (e *ShardedEngine) RecordCount() int {
	n := 0
	for _, s := range e.shards {
		n += s.processor.RecordCount()
	}
	return n
}

func (e *ShardedEngine) shardFor(clientID uint16) *shard {
	return e.shards[int(clientID)%len(e.shards)]
}
