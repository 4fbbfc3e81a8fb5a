package service

import (
	"context"
	"math/rand"
	"sort"
	"testing"

	"payengine/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomStream 生成交易ID全局唯一的随机输入，引用类记录随机指向已出现过的ID
func randomStream(seed int64, n int, clients uint16) []model.Transaction {
	rng := rand.New(rand.NewSource(seed))
	var (
		out    []model.Transaction
		issued []uint32
		owner  = make(map[uint32]uint16)
		nextID uint32
	)
	for i := 0; i < n; i++ {
		client := uint16(rng.Intn(int(clients)) + 1)
		roll := rng.Intn(10)
		switch {
		case roll < 4 || len(issued) == 0:
			nextID++
			amount := decimal.New(rng.Int63n(100000), -int32(rng.Intn(5)))
			out = append(out, model.Transaction{Type: model.TxTypeDeposit, ClientID: client, TxID: nextID, Amount: amount})
			issued = append(issued, nextID)
			owner[nextID] = client
		case roll < 6:
			nextID++
			amount := decimal.New(rng.Int63n(50000), -int32(rng.Intn(5)))
			out = append(out, model.Transaction{Type: model.TxTypeWithdrawal, ClientID: client, TxID: nextID, Amount: amount})
			issued = append(issued, nextID)
			owner[nextID] = client
		default:
			id := issued[rng.Intn(len(issued))]
			if rng.Intn(5) > 0 {
				client = owner[id]
			}
			kinds := []model.TxType{model.TxTypeDispute, model.TxTypeResolve, model.TxTypeChargeback}
			out = append(out, model.Transaction{Type: kinds[rng.Intn(len(kinds))], ClientID: client, TxID: id})
		}
	}
	return out
}

func TestProcessorInvariantsHoldOnRandomInput(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		p := NewInMemoryProcessor()
		expected := make(map[uint16]decimal.Decimal)
		lockedAt := make(map[uint16]bool)

		for _, tx := range randomStream(seed, 500, 6) {
			wasLocked := lockedAt[tx.ClientID]
			before, _ := p.Account(tx.ClientID)
			var chargedAmount decimal.Decimal
			if tx.Type == model.TxTypeChargeback {
				if r, ok := p.Record(tx.TxID); ok {
					chargedAmount = r.Amount
				}
			}

			res := p.Process(tx)
			if wasLocked {
				assert.False(t, res.Accepted(), "%s accepted on locked account (seed %d)", tx.Type, seed)
			}

			if res.Accepted() {
				switch tx.Type {
				case model.TxTypeDeposit:
					expected[tx.ClientID] = expected[tx.ClientID].Add(tx.Amount)
				case model.TxTypeWithdrawal:
					expected[tx.ClientID] = expected[tx.ClientID].Sub(tx.Amount)
				case model.TxTypeChargeback:
					expected[tx.ClientID] = expected[tx.ClientID].Sub(chargedAmount)
				}
			}

			a, ok := p.Account(tx.ClientID)
			require.True(t, ok)
			assert.False(t, a.Available.IsNegative(), "available < 0 (seed %d)", seed)
			assert.False(t, a.Held.IsNegative(), "held < 0 (seed %d)", seed)
			assert.True(t, a.Total().Equal(a.Available.Add(a.Held)))
			if wasLocked {
				assert.True(t, a.Locked, "lock must be final")
				assert.True(t, before.Available.Equal(a.Available), "locked available changed (seed %d)", seed)
				assert.True(t, before.Held.Equal(a.Held), "locked held changed (seed %d)", seed)
			}
			lockedAt[tx.ClientID] = a.Locked
		}

		for _, a := range p.Accounts() {
			want := expected[a.ClientID]
			assert.True(t, want.Equal(a.Total()), "conservation: client %d want %s got %s", a.ClientID, want, a.Total())
		}
	}
}

func TestRepeatedDisputeIsIdempotent(t *testing.T) {
	p := NewInMemoryProcessor()
	mustAccept(t, p, deposit(1, 1, "3"), deposit(2, 1, "4"), dispute(1, 1))
	before, _ := p.Account(1)

	for i := 0; i < 5; i++ {
		mustReject(t, p, dispute(1, 1), RejectInvalidStateTransition)
	}
	after, _ := p.Account(1)
	assert.Equal(t, before, after)
}

func runSequential(t *testing.T, txs []model.Transaction) []model.Account {
	t.Helper()
	e := NewSequentialEngine(nil, nil)
	for _, tx := range txs {
		require.NoError(t, e.Apply(context.Background(), tx))
	}
	require.NoError(t, e.Close())
	accounts := e.Accounts()
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ClientID < accounts[j].ClientID })
	return accounts
}

func runSharded(t *testing.T, workers int, txs []model.Transaction) []model.Account {
	t.Helper()
	e, err := NewShardedEngine(context.Background(), workers, 16, NewMemoryGuard(), nil)
	require.NoError(t, err)
	for _, tx := range txs {
		require.NoError(t, e.Apply(context.Background(), tx))
	}
	require.NoError(t, e.Close())
	return e.Accounts()
}

func TestShardedMatchesSequential(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		txs := randomStream(seed, 800, 12)
		want := runSequential(t, txs)
		for _, workers := range []int{2, 3, 8} {
			got := runSharded(t, workers, txs)
			require.Len(t, got, len(want))
			for i := range want {
				assert.Equal(t, want[i].ClientID, got[i].ClientID)
				assert.True(t, want[i].Available.Equal(got[i].Available), "seed %d workers %d client %d", seed, workers, want[i].ClientID)
				assert.True(t, want[i].Held.Equal(got[i].Held))
				assert.Equal(t, want[i].Locked, got[i].Locked)
			}
		}
	}
}
