package repository

import (
	"errors"

	"payengine/internal/model"
)

var (
	ErrDuplicateTransaction = errors.New("交易ID已存在")
	ErrTransactionNotFound  = errors.New("交易不存在")
)

// TransactionRepository 存取款记录登记表
//
// 记录按受理顺序存放在切片里，index 把交易ID映射到切片下标，
// 查询、插入、状态更新都是 O(1)。记录只追加，不删除。
type TransactionRepository struct {
	records []model.TransactionRecord
	index   map[uint32]int
}

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{
		records: make([]model.TransactionRecord, 0, 64),
		index:   make(map[uint32]int),
	}
}

// Insert 登记一条新记录，ID 已存在时返回 ErrDuplicateTransaction，不会覆盖
func (r *TransactionRepository) Insert(record model.TransactionRecord) error {
	if _, exists := r.index[record.ID]; exists {
		return ErrDuplicateTransaction
	}

	record.DisputeState = model.DisputeStateNormal
	r.index[record.ID] = len(r.records)
	r.records = append(r.records, record)
	return nil
}

// Get 返回记录的副本
func (r *TransactionRepository) Get(id uint32) (model.TransactionRecord, bool) {
	i, exists := r.index[id]
	if !exists {
		return model.TransactionRecord{}, false
	}
	return r.records[i], true
}

// UpdateState 直接写入争议状态，状态迁移是否合法由调用方校验
func (r *TransactionRepository) UpdateState(id uint32, state model.DisputeState) error {
	i, exists := r.index[id]
	if !exists {
		return ErrTransactionNotFound
	}
	r.records[i].DisputeState = state
	return nil
}

func (r *TransactionRepository) Count() int {
	return len(r.records)
}

// List 按受理顺序返回全部记录
func (r *TransactionRepository) List() []model.TransactionRecord {
	out := make([]model.TransactionRecord, len(r.records))
	copy(out, r.records)
	return out
}
