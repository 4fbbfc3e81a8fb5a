package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AmountPrecision 金额保留的小数位数，输入截断与输出格式化都以此为准
const AmountPrecision int32 = 4

// ============================================================================
// 交易类型常量
// ============================================================================

// TxType 输入记录的交易类型
type TxType string

const (
	TxTypeDeposit    TxType = "deposit"    // 存款
	TxTypeWithdrawal TxType = "withdrawal" // 取款
	TxTypeDispute    TxType = "dispute"    // 发起争议
	TxTypeResolve    TxType = "resolve"    // 争议解决
	TxTypeChargeback TxType = "chargeback" // 拒付
)

// AllTxTypes 按固定顺序列出全部类型，统计输出时使用
var AllTxTypes = []TxType{
	TxTypeDeposit,
	TxTypeWithdrawal,
	TxTypeDispute,
	TxTypeResolve,
	TxTypeChargeback,
}

// ParseTxType 解析类型字符串，忽略大小写和首尾空白
func ParseTxType(s string) (TxType, bool) {
	t := TxType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllTxTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// CarriesAmount 只有存款和取款带金额，并且会在登记表中创建记录
func (t TxType) CarriesAmount() bool {
	return t == TxTypeDeposit || t == TxTypeWithdrawal
}

// ============================================================================
// 交易实体
// ============================================================================

// Transaction 输入流中的一条记录
//
// 对于 dispute / resolve / chargeback，TxID 指向被引用的存取款记录，Amount 为零值。
type Transaction struct {
	Type     TxType
	ClientID uint16
	TxID     uint32
	Amount   decimal.Decimal
}

// TransactionRecord 已受理的存取款记录
//
// 【设计原则】
// 1. 只追加，不删除
// 2. ID 全局唯一（跨客户）
// 3. 创建后只有 DisputeState 会变化
type TransactionRecord struct {
	ID           uint32
	ClientID     uint16
	Kind         TxType
	Amount       decimal.Decimal
	DisputeState DisputeState
}

// NewTransactionRecord 由存取款输入构造登记记录，初始状态为 NORMAL
func NewTransactionRecord(tx Transaction) TransactionRecord {
	return TransactionRecord{
		ID:           tx.TxID,
		ClientID:     tx.ClientID,
		Kind:         tx.Type,
		Amount:       tx.Amount,
		DisputeState: DisputeStateNormal,
	}
}
