package repository

import (
	"testing"

	"payengine/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id uint32, client uint16, amount string) model.TransactionRecord {
	return model.NewTransactionRecord(model.Transaction{
		Type:     model.TxTypeDeposit,
		ClientID: client,
		TxID:     id,
		Amount:   decimal.RequireFromString(amount),
	})
}

func TestTransactionRepositoryInsertAndGet(t *testing.T) {
	repo := NewTransactionRepository()

	require.NoError(t, repo.Insert(record(1, 1, "10")))
	got, ok := repo.Get(1)
	require.True(t, ok)
	assert.Equal(t, uint16(1), got.ClientID)
	assert.Equal(t, model.DisputeStateNormal, got.DisputeState)

	_, ok = repo.Get(2)
	assert.False(t, ok)
}

func TestTransactionRepositoryRejectsDuplicate(t *testing.T) {
	repo := NewTransactionRepository()
	require.NoError(t, repo.Insert(record(1, 1, "10")))

	err := repo.Insert(record(1, 2, "99"))
	assert.ErrorIs(t, err, ErrDuplicateTransaction)

	got, _ := repo.Get(1)
	assert.Equal(t, uint16(1), got.ClientID, "existing record must not be overwritten")
	assert.Equal(t, 1, repo.Count())
}

func TestTransactionRepositoryGetReturnsCopy(t *testing.T) {
	repo := NewTransactionRepository()
	require.NoError(t, repo.Insert(record(1, 1, "10")))

	got, _ := repo.Get(1)
	got.DisputeState = model.DisputeStateChargedBack

	again, _ := repo.Get(1)
	assert.Equal(t, model.DisputeStateNormal, again.DisputeState)
}

func TestTransactionRepositoryUpdateState(t *testing.T) {
	repo := NewTransactionRepository()
	require.NoError(t, repo.Insert(record(1, 1, "10")))

	require.NoError(t, repo.UpdateState(1, model.DisputeStateDisputed))
	got, _ := repo.Get(1)
	assert.Equal(t, model.DisputeStateDisputed, got.DisputeState)

	assert.ErrorIs(t, repo.UpdateState(9, model.DisputeStateDisputed), ErrTransactionNotFound)
}

func TestTransactionRepositoryListKeepsInsertionOrder(t *testing.T) {
	repo := NewTransactionRepository()
	for _, id := range []uint32{5, 1, 3} {
		require.NoError(t, repo.Insert(record(id, 1, "1")))
	}

	var ids []uint32
	for _, r := range repo.List() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []uint32{5, 1, 3}, ids)
}
