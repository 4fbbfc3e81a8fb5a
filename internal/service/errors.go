package service

import (
	"errors"
	"fmt"

	"payengine/internal/model"
)

// RejectKind 拒绝原因分类
// 所有拒绝都只影响当前这一条记录，处理流程继续
type RejectKind string

const (
	RejectDuplicateTransactionID      RejectKind = "DuplicateTransactionId"
	RejectUnknownTransactionReference RejectKind = "UnknownTransactionReference"
	RejectClientMismatch              RejectKind = "ClientMismatch"
	RejectInvalidStateTransition      RejectKind = "InvalidStateTransition"
	RejectInsufficientFunds           RejectKind = "InsufficientFunds"
	RejectAccountLocked               RejectKind = "AccountLocked"
)

// AllRejectKinds 统计输出使用的固定顺序
var AllRejectKinds = []RejectKind{
	RejectDuplicateTransactionID,
	RejectUnknownTransactionReference,
	RejectClientMismatch,
	RejectInvalidStateTransition,
	RejectInsufficientFunds,
	RejectAccountLocked,
}

var (
	ErrClientMismatch         = errors.New("客户ID与原交易不一致")
	ErrInvalidStateTransition = errors.New("当前争议状态不允许该操作")
	ErrAccountLocked          = errors.New("账户已锁定")
	ErrUnsupportedType        = errors.New("不支持的交易类型")
)

// Rejection 带分类的拒绝结果，Err 保留底层原因（仓储层哨兵错误等）
type Rejection struct {
	Kind     RejectKind
	Type     model.TxType
	TxID     uint32
	ClientID uint16
	Err      error
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: type=%s tx=%d client=%d: %v", r.Kind, r.Type, r.TxID, r.ClientID, r.Err)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

func reject(kind RejectKind, tx model.Transaction, err error) *Rejection {
	return &Rejection{
		Kind:     kind,
		Type:     tx.Type,
		TxID:     tx.TxID,
		ClientID: tx.ClientID,
		Err:      err,
	}
}
