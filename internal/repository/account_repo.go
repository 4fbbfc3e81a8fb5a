package repository

import (
	"errors"

	"payengine/internal/model"

	"github.com/shopspring/decimal"
)

var (
	ErrBalanceNotEnough = errors.New("余额不足")
	ErrHeldNotEnough    = errors.New("冻结金额不足")
)

// AccountRepository 账户台账
//
// 与登记表相同的结构：切片按创建顺序保存账户，index 按客户ID定位。
// 所有变更都通过方法完成，对外只返回副本。
type AccountRepository struct {
	accounts []model.Account
	index    map[uint16]int
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts: make([]model.Account, 0, 16),
		index:    make(map[uint16]int),
	}
}

// GetOrCreate 账户不存在时以零余额、未锁定状态创建
func (r *AccountRepository) GetOrCreate(clientID uint16) model.Account {
	return *r.slot(clientID)
}

func (r *AccountRepository) Get(clientID uint16) (model.Account, bool) {
	i, exists := r.index[clientID]
	if !exists {
		return model.Account{}, false
	}
	return r.accounts[i], true
}

// Deposit 增加可用余额，金额非负由调用方保证
func (r *AccountRepository) Deposit(clientID uint16, amount decimal.Decimal) {
	account := r.slot(clientID)
	account.Available = account.Available.Add(amount)
}

// Withdraw 可用余额不足时返回 ErrBalanceNotEnough，不做任何修改
func (r *AccountRepository) Withdraw(clientID uint16, amount decimal.Decimal) error {
	account := r.slot(clientID)
	if account.Available.LessThan(amount) {
		return ErrBalanceNotEnough
	}
	account.Available = account.Available.Sub(amount)
	return nil
}

// Hold 可用余额转入冻结（发起争议）
func (r *AccountRepository) Hold(clientID uint16, amount decimal.Decimal) error {
	account := r.slot(clientID)
	if account.Available.LessThan(amount) {
		return ErrBalanceNotEnough
	}
	account.Available = account.Available.Sub(amount)
	account.Held = account.Held.Add(amount)
	return nil
}

// Release 冻结金额退回可用余额（争议解决）
func (r *AccountRepository) Release(clientID uint16, amount decimal.Decimal) error {
	account := r.slot(clientID)
	if account.Held.LessThan(amount) {
		return ErrHeldNotEnough
	}
	account.Held = account.Held.Sub(amount)
	account.Available = account.Available.Add(amount)
	return nil
}

// Forfeit 扣除冻结金额并锁定账户（拒付），总额随之减少
func (r *AccountRepository) Forfeit(clientID uint16, amount decimal.Decimal) error {
	account := r.slot(clientID)
	if account.Held.LessThan(amount) {
		return ErrHeldNotEnough
	}
	account.Held = account.Held.Sub(amount)
	account.Locked = true
	return nil
}

func (r *AccountRepository) Count() int {
	return len(r.accounts)
}

// List 按创建顺序返回全部账户（包括已锁定的）
func (r *AccountRepository) List() []model.Account {
	out := make([]model.Account, len(r.accounts))
	copy(out, r.accounts)
	return out
}

// slot 返回切片内账户的指针，仅在本包内短暂使用，不能跨 append 持有
func (r *AccountRepository) slot(clientID uint16) *model.Account {
	i, exists := r.index[clientID]
	if !exists {
		i = len(r.accounts)
		r.index[clientID] = i
		r.accounts = append(r.accounts, model.Account{
			ClientID:  clientID,
			Available: decimal.Zero,
			Held:      decimal.Zero,
		})
	}
	return &r.accounts[i]
}
