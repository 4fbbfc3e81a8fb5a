package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"payengine/internal/model"
	"payengine/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resultLog struct {
	mu      sync.Mutex
	results []Result
}

func (l *resultLog) Observe(r Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, r)
}

func (l *resultLog) rejected(kind RejectKind) []Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Result
	for _, r := range l.results {
		if !r.Accepted() && r.Rejection.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

type failingGuard struct{ err error }

func (g failingGuard) Claim(context.Context, uint32) (bool, error) {
	return false, g.err
}

func TestNewShardedEngineRejectsZeroWorkers(t *testing.T) {
	_, err := NewShardedEngine(context.Background(), 0, 1, nil, nil)
	assert.Error(t, err)
}

func TestShardedEngineCrossShardDuplicateID(t *testing.T) {
	log := &resultLog{}
	e, err := NewShardedEngine(context.Background(), 4, 8, NewMemoryGuard(), log)
	require.NoError(t, err)

	// client 1 和 client 2 落在不同分片
	require.NoError(t, e.Apply(context.Background(), deposit(1, 1, "10")))
	require.NoError(t, e.Apply(context.Background(), deposit(1, 2, "20")))
	require.NoError(t, e.Close())

	accounts := e.Accounts()
	require.Len(t, accounts, 2)
	assert.Equal(t, uint16(1), accounts[0].ClientID)
	assert.Equal(t, "10", accounts[0].Available.String())
	assert.Equal(t, uint16(2), accounts[1].ClientID)
	assert.True(t, accounts[1].Available.IsZero())

	dups := log.rejected(RejectDuplicateTransactionID)
	require.Len(t, dups, 1)
	assert.Equal(t, uint16(2), dups[0].Transaction.ClientID)
	assert.ErrorIs(t, dups[0].Rejection, repository.ErrDuplicateTransaction)
	assert.Equal(t, 1, e.RecordCount())
}

func TestShardedEnginePreservesPerClientOrder(t *testing.T) {
	e, err := NewShardedEngine(context.Background(), 3, 0, nil, nil)
	require.NoError(t, err)

	txs := []model.Transaction{
		deposit(1, 5, "10"),
		dispute(1, 5),
		deposit(2, 6, "1"),
		chargeback(1, 5),
		deposit(3, 5, "7"),
	}
	for _, tx := range txs {
		require.NoError(t, e.Apply(context.Background(), tx))
	}
	require.NoError(t, e.Close())

	accounts := e.Accounts()
	require.Len(t, accounts, 2)
	assert.True(t, accounts[0].Locked)
	assert.True(t, accounts[0].Total().IsZero(), "deposit after chargeback must be rejected")
	assert.Equal(t, "1", accounts[1].Available.String())
}

func TestShardedEngineGuardFailure(t *testing.T) {
	boom := errors.New("redis down")
	e, err := NewShardedEngine(context.Background(), 2, 1, failingGuard{err: boom}, nil)
	require.NoError(t, err)

	err = e.Apply(context.Background(), deposit(1, 1, "1"))
	assert.ErrorIs(t, err, boom)

	// 引用类记录不经过去重
	require.NoError(t, e.Apply(context.Background(), dispute(1, 1)))
	require.NoError(t, e.Close())
}

func TestShardedEngineCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e, err := NewShardedEngine(ctx, 2, 0, nil, nil)
	require.NoError(t, err)

	cancel()
	err = e.Apply(ctx, deposit(1, 1, "1"))
	assert.ErrorIs(t, err, context.Canceled)
	if err := e.Close(); err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestShardedEngineCloseIsIdempotent(t *testing.T) {
	e, err := NewShardedEngine(context.Background(), 2, 1, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
}

func TestSequentialEngineCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewSequentialEngine(nil, nil)
	assert.ErrorIs(t, e.Apply(ctx, deposit(1, 1, "1")), context.Canceled)
	assert.Empty(t, e.Accounts())
}

// 分发时即声明ID：被分片拒绝的取款也占用了ID，之后复用该ID会被拒绝；
// 单线程模式下被拒绝的取款不登记，ID 可以复用
func TestShardedEngineClaimsIDOfRejectedWithdrawal(t *testing.T) {
	txs := []model.Transaction{
		deposit(1, 1, "1"),
		withdrawal(2, 1, "5"),
		deposit(2, 1, "3"),
	}

	seq := runSequential(t, txs)
	require.Len(t, seq, 1)
	assert.Equal(t, "4", seq[0].Available.String())

	log := &resultLog{}
	e, err := NewShardedEngine(context.Background(), 2, 4, NewMemoryGuard(), log)
	require.NoError(t, err)
	for _, tx := range txs {
		require.NoError(t, e.Apply(context.Background(), tx))
	}
	require.NoError(t, e.Close())

	sharded := e.Accounts()
	require.Len(t, sharded, 1)
	assert.Equal(t, "1", sharded[0].Available.String())

	require.Len(t, log.rejected(RejectInsufficientFunds), 1)
	dups := log.rejected(RejectDuplicateTransactionID)
	require.Len(t, dups, 1)
	assert.Equal(t, model.TxTypeDeposit, dups[0].Transaction.Type)
	assert.Equal(t, uint32(2), dups[0].Transaction.TxID)
}
