package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account 客户账户
// 每个客户一个账户，首次被任意记录引用时创建，之后只修改不删除
type Account struct {
	ClientID  uint16
	Available decimal.Decimal // 可用余额，可取款、可被争议冻结
	Held      decimal.Decimal // 争议中冻结的金额
	Locked    bool            // 拒付后锁定
}

// Total 总额恒等于 Available + Held
func (a Account) Total() decimal.Decimal {
	return a.Available.Add(a.Held)
}

// AccountSnapshot 账户最终快照表
// 每次运行按 run_id 导出一份，只写不读回
type AccountSnapshot struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"-"`
	RunID     string          `gorm:"type:varchar(36);uniqueIndex:idx_run_client;not null" json:"run_id"`
	ClientID  uint16          `gorm:"uniqueIndex:idx_run_client;not null" json:"client"`
	Available decimal.Decimal `gorm:"type:decimal(24,4);not null" json:"available"`
	Held      decimal.Decimal `gorm:"type:decimal(24,4);not null" json:"held"`
	Total     decimal.Decimal `gorm:"type:decimal(24,4);not null" json:"total"`
	Locked    bool            `gorm:"not null;default:false" json:"locked"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (AccountSnapshot) TableName() string {
	return "account_snapshot"
}

// NewAccountSnapshot 将账户转换为快照行，金额按 AmountPrecision 舍入
func NewAccountSnapshot(runID string, account Account) AccountSnapshot {
	return AccountSnapshot{
		RunID:     runID,
		ClientID:  account.ClientID,
		Available: account.Available.Round(AmountPrecision),
		Held:      account.Held.Round(AmountPrecision),
		Total:     account.Total().Round(AmountPrecision),
		Locked:    account.Locked,
	}
}
