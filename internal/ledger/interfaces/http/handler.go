package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/investledger/internal/ledger/application"
	"github.com/wyfcoding/investledger/internal/ledger/domain"
	"github.com/wyfcoding/investledger/pkg/logger"
	"github.com/wyfcoding/investledger/pkg/middleware"
	"github.com/wyfcoding/pkg/xerrors"
)

// Handler 账本 HTTP 处理器
type Handler struct {
	plans     *application.PlanService
	transfers *application.TransferService
	funding   *application.FundingService
	payouts   *application.PayoutService
	profiles  *application.ProfileService
	queries   *application.QueryService
}

// Services 处理器依赖的应用服务
type Services struct {
	Plans     *application.PlanService
	Transfers *application.TransferService
	Funding   *application.FundingService
	Payouts   *application.PayoutService
	Profiles  *application.ProfileService
	Queries   *application.QueryService
}

// NewHandler 创建 HTTP 处理器
func NewHandler(s Services) *Handler {
	return &Handler{
		plans:     s.Plans,
		transfers: s.Transfers,
		funding:   s.Funding,
		payouts:   s.Payouts,
		profiles:  s.Profiles,
		queries:   s.Queries,
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/activatePlan", h.ActivatePlan)
	api.POST("/manageActivePlan", h.ManageActivePlan)
	api.POST("/restartPlan", h.RestartPlan)
	api.POST("/transferFund", h.TransferFund)
	api.POST("/sendDepositReq", h.SendDepositReq)
	api.POST("/sendWithdrawReq", h.SendWithdrawReq)
	api.POST("/savePaymentAccount", h.SavePaymentAccount)
	api.PUT("/updatePaymentAccount", h.UpdatePaymentAccount)
	api.GET("/paymentAccounts/:userId", h.ListPaymentAccounts)
	api.DELETE("/paymentAccounts/:userId/:walletId", h.DeletePaymentAccount)
	api.POST("/registerUser", h.RegisterUser)
	api.POST("/submitKyc", h.SubmitKYC)
	api.GET("/ledger/:userId", h.GetLedger)
	api.GET("/history/:userId", h.ListHistory)
	api.GET("/plans", h.ListPlans)
}

// ActivatePlanRequest 激活方案请求，方案条款以目录为准，只取 selectedPlan.id
type ActivatePlanRequest struct {
	UserInvestment struct {
		UserID string `json:"userId" binding:"required"`
	} `json:"userInvestment" binding:"required"`
	SelectedPlan struct {
		ID   string `json:"id" binding:"required"`
		Name string `json:"name"`
	} `json:"selectedPlan" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// ActivatePlan 激活方案
func (h *Handler) ActivatePlan(c *gin.Context) {
	var req ActivatePlanRequest
	if !bind(c, &req) {
		return
	}
	if !authorize(c, req.UserInvestment.UserID) {
		return
	}

	_, err := h.plans.Activate(c.Request.Context(), application.ActivatePlanCommand{
		UserID: req.UserInvestment.UserID,
		PlanID: req.SelectedPlan.ID,
		Amount: req.Amount,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Plan activated successfully"})
}

// ManagePlanRequest 管理方案请求
type ManagePlanRequest struct {
	UserID string `json:"userId" binding:"required"`
	Action string `json:"action" binding:"required"`
}

var manageMessages = map[application.ManageAction]string{
	application.ActionPause:   "Plan paused successfully",
	application.ActionResume:  "Plan resumed successfully",
	application.ActionStop:    "Plan stopped successfully",
	application.ActionRestart: "Plan restarted successfully",
}

// ManageActivePlan 暂停/恢复/停止/重启
func (h *Handler) ManageActivePlan(c *gin.Context) {
	var req ManagePlanRequest
	if !bind(c, &req) {
		return
	}
	if !authorize(c, req.UserID) {
		return
	}
	action, err := application.ParseManageAction(req.Action)
	if err != nil {
		writeError(c, err)
		return
	}

	ledger, err := h.plans.Manage(c.Request.Context(), req.UserID, action)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    manageMessages[action],
		"investment": ledger,
	})
}

// UserRequest 只带用户 ID 的请求
type UserRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// RestartPlan 重启已到期方案
func (h *Handler) RestartPlan(c *gin.Context) {
	var req UserRequest
	if !bind(c, &req) {
		return
	}
	if !authorize(c, req.UserID) {
		return
	}

	ledger, err := h.plans.RestartCompleted(c.Request.Context(), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":           "Plan restarted successfully",
		"updatedInvestment": ledger,
	})
}

// TransferRequest 转账请求，recipient 为收款方用户名
type TransferRequest struct {
	Recipient  string          `json:"recipient"`
	Amount     decimal.Decimal `json:"amount"`
	UserID     string          `json:"userId" binding:"required"`
	TransferID string          `json:"transferId"`
}

// TransferFund 用户间转账
func (h *Handler) TransferFund(c *gin.Context) {
	var req TransferRequest
	if !bind(c, &req) {
		return
	}
	if !authorize(c, req.UserID) {
		return
	}

	result, err := h.transfers.Transfer(c.Request.Context(), application.TransferCommand{
		SenderID:          req.UserID,
		RecipientUsername: req.Recipient,
		Amount:            req.Amount,
		TransferID:        req.TransferID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Transfer successful",
		"transferId": result.TransferID,
	})
}

// DepositRequest 充值申请
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Crypto string          `json:"crypto"`
	UserID string          `json:"userId" binding:"required"`
	Name   string          `json:"name"`
	Email  string          `json:"email"`
}

// SendDepositReq 登记待结算充值
func (h *Handler) SendDepositReq(c *gin.Context) {
	var req DepositRequest
	if !bind(c, &req) {
		return
	}
	if !authorize(c, req.UserID) {
		return
	}

	entry, err := h.funding.RequestDeposit(c.Request.Context(), application.DepositRequestCommand{
		UserID: req.UserID,
		Name:   req.Name,
		Email:  req.Email,
		Amount: req.Amount,
		Crypto: req.Crypto,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Deposit request submitted",
		"docId":   entry.ID,
	})
}

// WithdrawRequest 提现申请
type WithdrawRequest struct {
	Amount         decimal.Decimal        `json:"amount"`
	SelectedWallet *domain.SelectedWallet `json:"selectedWallet"`
	UserID         string                 `json:"userId" binding:"required"`
	Name           string                 `json:"name"`
}

// SendWithdrawReq 扣款并登记待结算提现
func (h *Handler) SendWithdrawReq(c *gin.Context) {
	var req WithdrawRequest
	if !bind(c, &req) {
		return
	}
	if !authorize(c, req.UserID) {
		return
	}

	entry, err := h.funding.RequestWithdrawal(c.Request.Context(), application.WithdrawRequestCommand{
		UserID:         req.UserID,
		Name:           req.Name,
		Amount:         req.Amount,
		SelectedWallet: req.SelectedWallet,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Withdrawal request submitted",
		"docId":   entry.ID,
	})
}

// PaymentAccountRequest 出金账户，钱包字段平铺
type PaymentAccountRequest struct {
	UserID   string `json:"userId" binding:"required"`
	WalletID string `json:"walletId"`
	Label    string `json:"label"`
	domain.SelectedWallet
}

func (r *PaymentAccountRequest) command() application.SavePayoutAccountCommand {
	wallet := r.SelectedWallet
	return application.SavePayoutAccountCommand{
		UserID:   r.UserID,
		WalletID: r.WalletID,
		Label:    r.Label,
		Wallet:   &wallet,
	}
}

// SavePaymentAccount 新增出金账户
func (h *Handler) SavePaymentAccount(c *gin.Context) {
	var req PaymentAccountRequest
	if !bind(c, &req) {
		return
	}
	if !authorize(c, req.UserID) {
		return
	}

	account, err := h.payouts.Save(c.Request.Context(), req.command())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Payment account saved",
		"walletId": account.WalletID,
	})
}

// UpdatePaymentAccount 更新出金账户
func (h *Handler) UpdatePaymentAccount(c *gin.Context) {
	var req PaymentAccountRequest
	if !bind(c, &req) {
		return
	}
	if !authorize(c, req.UserID) {
		return
	}

	account, err := h.payouts.Update(c.Request.Context(), req.command())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Payment account updated",
		"account": account,
	})
}

// ListPaymentAccounts 列出出金账户
func (h *Handler) ListPaymentAccounts(c *gin.Context) {
	userID := c.Param("userId")
	if !authorize(c, userID) {
		return
	}
	accounts, err := h.payouts.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// DeletePaymentAccount 删除出金账户
func (h *Handler) DeletePaymentAccount(c *gin.Context) {
	userID := c.Param("userId")
	if !authorize(c, userID) {
		return
	}
	if err := h.payouts.Delete(c.Request.Context(), userID, c.Param("walletId")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment account deleted"})
}

// RegisterUserRequest 注册请求
type RegisterUserRequest struct {
	UserID   string `json:"userId" binding:"required"`
	Username string `json:"username" binding:"required"`
	Name     string `json:"name"`
	Email    string `json:"email" binding:"required"`
	Currency string `json:"currency"`
}

// RegisterUser 创建用户资料与账本
func (h *Handler) RegisterUser(c *gin.Context) {
	var req RegisterUserRequest
	if !bind(c, &req) {
		return
	}
	if !authorize(c, req.UserID) {
		return
	}

	profile, err := h.profiles.Register(c.Request.Context(), application.RegisterUserCommand{
		UserID:   req.UserID,
		Username: req.Username,
		Name:     req.Name,
		Email:    req.Email,
		Currency: req.Currency,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered",
		"user":    profile,
	})
}

// SubmitKYCRequest KYC 提交
type SubmitKYCRequest struct {
	UserID       string `json:"userId" binding:"required"`
	DocumentType string `json:"documentType" binding:"required"`
	DocumentURL  string `json:"documentUrl" binding:"required"`
}

// SubmitKYC 记录 KYC 材料
func (h *Handler) SubmitKYC(c *gin.Context) {
	var req SubmitKYCRequest
	if !bind(c, &req) {
		return
	}
	if !authorize(c, req.UserID) {
		return
	}

	profile, err := h.profiles.SubmitKYC(c.Request.Context(), application.SubmitKYCCommand{
		UserID:       req.UserID,
		DocumentType: req.DocumentType,
		DocumentURL:  req.DocumentURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "KYC submitted",
		"user":    profile,
	})
}

// GetLedger 账本视图
func (h *Handler) GetLedger(c *gin.Context) {
	userID := c.Param("userId")
	if !authorize(c, userID) {
		return
	}
	ledger, err := h.queries.GetLedger(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ledger)
}

// ListHistory 流水分页
func (h *Handler) ListHistory(c *gin.Context) {
	userID := c.Param("userId")
	if !authorize(c, userID) {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	page, err := h.queries.ListHistory(c.Request.Context(), userID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ListPlans 方案目录
func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.plans.ListPlans(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// bind 解析 JSON 请求体，失败时直接写 400
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logger.Warn(c.Request.Context(), "Invalid request body", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "invalid request body: " + err.Error(),
			"error":   "VALIDATION_FAILED",
		})
		return false
	}
	return true
}

// authorize 启用鉴权时，令牌中的用户必须与请求操作的用户一致
func authorize(c *gin.Context, userID string) bool {
	authUser, ok := middleware.AuthenticatedUser(c)
	if !ok || authUser == userID {
		return true
	}
	logger.Warn(c.Request.Context(), "Caller acting on another user's ledger",
		"auth_user_id", authUser,
		"user_id", userID,
	)
	c.JSON(http.StatusForbidden, gin.H{
		"message": "not allowed to act on behalf of another user",
		"error":   "FORBIDDEN",
	})
	return false
}

// StatusOf 错误到 HTTP 状态码，领域错误与 xerrors 自带映射
func StatusOf(err error) int {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.HTTPStatus()
	}
	if xe, ok := xerrors.FromError(err); ok {
		return xe.HTTPStatus()
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status := StatusOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "Request failed", "path", c.FullPath(), "error", err)
		if domain.KindOf(err) == domain.KindInternal {
			message = "Internal server error"
		}
	}
	c.JSON(status, gin.H{
		"message": message,
		"error":   domain.CodeOf(err),
	})
}
