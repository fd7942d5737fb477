package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/workhub/backend/internal/dto"
	"github.com/workhub/backend/internal/http/handlers/common"
	"github.com/workhub/backend/internal/service"
)

// PaymentHandler обслуживает балансы, транзакции и escrow этапов.
// Заморозка и выплата escrow выполняются каскадами жизненного цикла,
// наружу торчат только чтение и пополнение.
type PaymentHandler struct {
	payments *service.PaymentService
}

func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// GetBalance GET /payments/balance
func (h *PaymentHandler) GetBalance(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	balance, err := h.payments.GetBalance(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, balance)
}

// Deposit POST /payments/deposit
func (h *PaymentHandler) Deposit(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "сумма должна быть положительной")
		return
	}

	transaction, err := h.payments.Deposit(c.Request.Context(), userID, req.Amount)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, transaction)
}

// GetEscrow GET /payments/escrow/:milestoneId
func (h *PaymentHandler) GetEscrow(c *gin.Context) {
	milestoneID, err := common.ParseUUIDParam(c, "milestoneId")
	if err != nil {
		common.RespondBadRequest(c, "неверный milestone_id")
		return
	}

	escrow, err := h.payments.GetEscrowByMilestone(c.Request.Context(), milestoneID)
	if err != nil {
		common.RespondNotFound(c, "escrow не найден")
		return
	}

	c.JSON(http.StatusOK, escrow)
}

// ListTransactions GET /payments/transactions
func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)

	transactions, err := h.payments.ListTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}
