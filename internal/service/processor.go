package service

import (
	"payengine/internal/model"
	"payengine/internal/repository"
)

// Result 单条记录的处理结果，Rejection 为 nil 表示已受理
type Result struct {
	Transaction model.Transaction
	Rejection   *Rejection
}

func (r Result) Accepted() bool {
	return r.Rejection == nil
}

// Processor 交易状态机
//
// 【关键点】登记表和台账只由 Processor 修改：
//   - 先完成全部校验，再修改数据，拒绝的记录不留痕迹
//   - 唯一的例外是账户的惰性创建：任何记录引用到的客户都会有账户
//   - 单线程调用，不加锁；并发由 ShardedEngine 按客户分片解决
type Processor struct {
	transactions *repository.TransactionRepository
	accounts     *repository.AccountRepository
}

func NewProcessor(transactions *repository.TransactionRepository, accounts *repository.AccountRepository) *Processor {
	return &Processor{
		transactions: transactions,
		accounts:     accounts,
	}
}

// NewInMemoryProcessor 使用全新的登记表和台账
func NewInMemoryProcessor() *Processor {
	return NewProcessor(repository.NewTransactionRepository(), repository.NewAccountRepository())
}

// Process 按输入顺序逐条调用
func (p *Processor) Process(tx model.Transaction) Result {
	p.accounts.GetOrCreate(tx.ClientID)

	var rejection *Rejection
	switch tx.Type {
	case model.TxTypeDeposit:
		rejection = p.deposit(tx)
	case model.TxTypeWithdrawal:
		rejection = p.withdraw(tx)
	case model.TxTypeDispute:
		rejection = p.dispute(tx)
	case model.TxTypeResolve:
		rejection = p.resolve(tx)
	case model.TxTypeChargeback:
		rejection = p.chargeback(tx)
	default:
		rejection = reject(RejectInvalidStateTransition, tx, ErrUnsupportedType)
	}

	return Result{Transaction: tx, Rejection: rejection}
}

func (p *Processor) Account(clientID uint16) (model.Account, bool) {
	return p.accounts.Get(clientID)
}

func (p *Processor) Record(id uint32) (model.TransactionRecord, bool) {
	return p.transactions.Get(id)
}

func (p *Processor) Accounts() []model.Account {
	return p.accounts.List()
}

func (p *Processor) RecordCount() int {
	return p.transactions.Count()
}

func (p *Processor) deposit(tx model.Transaction) *Rejection {
	if _, exists := p.transactions.Get(tx.TxID); exists {
		return reject(RejectDuplicateTransactionID, tx, repository.ErrDuplicateTransaction)
	}
	if rejection := p.checkUnlocked(tx); rejection != nil {
		return rejection
	}

	if err := p.transactions.Insert(model.NewTransactionRecord(tx)); err != nil {
		return reject(RejectDuplicateTransactionID, tx, err)
	}
	p.accounts.Deposit(tx.ClientID, tx.Amount)
	return nil
}

func (p *Processor) withdraw(tx model.Transaction) *Rejection {
	if _, exists := p.transactions.Get(tx.TxID); exists {
		return reject(RejectDuplicateTransactionID, tx, repository.ErrDuplicateTransaction)
	}
	if rejection := p.checkUnlocked(tx); rejection != nil {
		return rejection
	}

	// Withdraw 校验和扣减是一步完成的，失败时余额不变；
	// ID 唯一性已在上面确认，之后的 Insert 不会失败
	if err := p.accounts.Withdraw(tx.ClientID, tx.Amount); err != nil {
		return reject(RejectInsufficientFunds, tx, err)
	}
	if err := p.transactions.Insert(model.NewTransactionRecord(tx)); err != nil {
		return reject(RejectDuplicateTransactionID, tx, err)
	}
	return nil
}

// checkUnlocked 锁定账户拒绝一切会改变余额的记录，包括锁定前已发起争议的 resolve / chargeback
func (p *Processor) checkUnlocked(tx model.Transaction) *Rejection {
	if account, _ := p.accounts.Get(tx.ClientID); account.Locked {
		return reject(RejectAccountLocked, tx, ErrAccountLocked)
	}
	return nil
}

// referenced 查找被 dispute / resolve / chargeback 引用的记录
func (p *Processor) referenced(tx model.Transaction) (model.TransactionRecord, *Rejection) {
	record, exists := p.transactions.Get(tx.TxID)
	if !exists {
		return record, reject(RejectUnknownTransactionReference, tx, repository.ErrTransactionNotFound)
	}
	if record.ClientID != tx.ClientID {
		return record, reject(RejectClientMismatch, tx, ErrClientMismatch)
	}
	return record, nil
}

func (p *Processor) dispute(tx model.Transaction) *Rejection {
	record, rejection := p.referenced(tx)
	if rejection != nil {
		return rejection
	}
	if rejection := p.checkUnlocked(tx); rejection != nil {
		return rejection
	}
	if !model.CanTransitionTo(record.DisputeState, model.DisputeStateDisputed) {
		return reject(RejectInvalidStateTransition, tx, ErrInvalidStateTransition)
	}

	// 存款和取款的争议处理相同：按原金额从可用转入冻结
	if err := p.accounts.Hold(tx.ClientID, record.Amount); err != nil {
		return reject(RejectInsufficientFunds, tx, err)
	}
	return p.advance(tx, model.DisputeStateDisputed)
}

func (p *Processor) resolve(tx model.Transaction) *Rejection {
	record, rejection := p.referenced(tx)
	if rejection != nil {
		return rejection
	}
	if rejection := p.checkUnlocked(tx); rejection != nil {
		return rejection
	}
	if !model.CanTransitionTo(record.DisputeState, model.DisputeStateResolved) {
		return reject(RejectInvalidStateTransition, tx, ErrInvalidStateTransition)
	}

	if err := p.accounts.Release(tx.ClientID, record.Amount); err != nil {
		return reject(RejectInsufficientFunds, tx, err)
	}
	return p.advance(tx, model.DisputeStateResolved)
}

func (p *Processor) chargeback(tx model.Transaction) *Rejection {
	record, rejection := p.referenced(tx)
	if rejection != nil {
		return rejection
	}
	if rejection := p.checkUnlocked(tx); rejection != nil {
		return rejection
	}
	if !model.CanTransitionTo(record.DisputeState, model.DisputeStateChargedBack) {
		return reject(RejectInvalidStateTransition, tx, ErrInvalidStateTransition)
	}

	if err := p.accounts.Forfeit(tx.ClientID, record.Amount); err != nil {
		return reject(RejectInsufficientFunds, tx, err)
	}
	return p.advance(tx, model.DisputeStateChargedBack)
}

func (p *Processor) advance(tx model.Transaction, state model.DisputeState) *Rejection {
	if err := p.transactions.UpdateState(tx.TxID, state); err != nil {
		return reject(RejectUnknownTransactionReference, tx, err)
	}
	return nil
}
