package handler

import (
	"strconv"

	"payengine/internal/model"
	"payengine/internal/service"
	"payengine/pkg/response"

	"github.com/gin-gonic/gin"
)

// SnapshotProvider 一次运行结束后的只读结果
type SnapshotProvider interface {
	Accounts() []model.Account
	Stats() service.Stats
}

// Handler 只读查询接口
type Handler struct {
	provider SnapshotProvider
}

func NewHandler(provider SnapshotProvider) *Handler {
	return &Handler{provider: provider}
}

// AccountView 账户对外展示格式，金额为 4 位小数的字符串
type AccountView struct {
	Client    uint16 `json:"client"`
	Available string `json:"available"`
	Held      string `json:"held"`
	Total     string `json:"total"`
	Locked    bool   `json:"locked"`
}

func NewAccountView(a model.Account) AccountView {
	return AccountView{
		Client:    a.ClientID,
		Available: a.Available.StringFixed(model.AmountPrecision),
		Held:      a.Held.StringFixed(model.AmountPrecision),
		Total:     a.Total().StringFixed(model.AmountPrecision),
		Locked:    a.Locked,
	}
}

// ListAccounts 全部账户
// GET /api/v1/accounts
func (h *Handler) ListAccounts(c *gin.Context) {
	accounts := h.provider.Accounts()
	list := make([]AccountView, 0, len(accounts))
	for _, a := range accounts {
		list = append(list, NewAccountView(a))
	}

	response.Success(c, gin.H{
		"list":  list,
		"total": len(list),
	})
}

// GetAccount 单个账户
// GET /api/v1/accounts/:client
func (h *Handler) GetAccount(c *gin.Context) {
	clientID, err := strconv.ParseUint(c.Param("client"), 10, 16)
	if err != nil {
		response.ParamError(c, "client 参数错误")
		return
	}

	for _, a := range h.provider.Accounts() {
		if a.ClientID == uint16(clientID) {
			response.Success(c, NewAccountView(a))
			return
		}
	}
	response.NotFound(c, response.CodeAccountNotFound, "账户不存在")
}

// GetStats 处理统计
// GET /api/v1/stats
func (h *Handler) GetStats(c *gin.Context) {
	response.Success(c, h.provider.Stats())
}
