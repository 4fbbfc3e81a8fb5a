package service

import (
	"context"
	"sync"
)

// TxIDGuard 跨分片的全局交易ID去重
//
// 只对存款和取款调用，由分发协程按输入顺序串行调用，
// 因此同一个ID总是由文件中第一次出现的记录声明成功。
type TxIDGuard interface {
	// Claim 首次声明返回 true，ID 已被声明过返回 false
	Claim(ctx context.Context, txID uint32) (bool, error)
}

// MemoryGuard 进程内去重
type MemoryGuard struct {
	mu   sync.Mutex
	seen map[uint32]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{seen: make(map[uint32]struct{})}
}

func (g *MemoryGuard) Claim(ctx context.Context, txID uint32) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.seen[txID]; exists {
		return false, nil
	}
	g.seen[txID] = struct{}{}
	return true, nil
}
