package server

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"time"

	"paylink/internal/database"
	"paylink/internal/domain"
	"paylink/internal/infrastructure/payment"
	"paylink/internal/repo"
	"paylink/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type handler struct {
	svc             service.PaymentLinkService
	health          database.Service
	stripePublicKey string
}

type createLinkRequest struct {
	OrderID string          `json:"order_id" binding:"required"`
	Email   string          `json:"email" binding:"required,email"`
	Amount  decimal.Decimal `json:"amount" binding:"required"`
}

func (h *handler) createPaymentLink(c *gin.Context) {
	var req createLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	res, err := h.svc.CreateOrReuse(c.Request.Context(), service.CreateLinkInput{
		OrderID: req.OrderID,
		Email:   req.Email,
		Amount:  req.Amount,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	if res.AlreadyPaid {
		c.JSON(http.StatusOK, gin.H{
			"status":  "already_paid",
			"message": "Payment has already been made.",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":             "success",
		"payment_url":        res.PaymentURL,
		"expires_in_seconds": int(res.ExpiresIn.Seconds()),
	})
}

func (h *handler) payPage(c *gin.Context) {
	data, err := h.svc.RenderPageData(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.renderError(c, err)
		return
	}

	if data.View != service.ViewPaymentForm {
		c.JSON(http.StatusOK, gin.H{"view": data.View, "message": data.Message})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"view":              data.View,
		"amount":            data.Amount,
		"order_id":          data.OrderID,
		"email":             data.Email,
		"token":             data.Token,
		"stripe_public_key": h.stripePublicKey,
	})
}

func (h *handler) createCheckoutSession(c *gin.Context) {
	token := c.PostForm("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "token is required"})
		return
	}

	redirectURL, err := h.svc.InitiateCheckout(c.Request.Context(), token)
	if err != nil {
		h.renderError(c, err)
		return
	}

	// 303 so a refresh of the result page re-issues a GET, not the POST.
	c.Redirect(http.StatusSeeOther, redirectURL)
}

func (h *handler) paymentSuccess(c *gin.Context) {
	token := c.Query("token")
	sessionID := c.Query("session_id")
	if token == "" || sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "token and session_id are required"})
		return
	}

	data, err := h.svc.ReconcileSuccess(c.Request.Context(), token, sessionID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": data.View, "message": data.Message})
}

func (h *handler) paymentCancelled(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "token is required"})
		return
	}

	data, err := h.svc.Cancel(c.Request.Context(), token)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": data.View, "message": data.Message})
}

func (h *handler) listPayments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}

	f := filterFromQuery(c)
	f.Page = page
	f.PerPage = perPage

	links, total, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		h.renderError(c, err)
		return
	}

	data := make([]gin.H, 0, len(links))
	for _, l := range links {
		data = append(data, gin.H{
			"id":         l.ID,
			"token":      l.Token,
			"order_id":   l.OrderID,
			"email":      l.Email,
			"amount":     l.Amount,
			"created_at": l.CreatedAt.Format(time.RFC3339),
			"status":     l.Status,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"page":     page,
		"per_page": perPage,
		"total":    total,
		"data":     data,
	})
}

func (h *handler) exportPayments(c *gin.Context) {
	rows, err := h.svc.ExportRows(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=payments.csv")
	w := csv.NewWriter(c.Writer)
	if err := w.WriteAll(rows); err != nil {
		// Headers are already out; nothing sensible left to send.
		c.Abort()
	}
}

func (h *handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, h.health.Health(c.Request.Context()))
}

func filterFromQuery(c *gin.Context) repo.ListFilter {
	return repo.ListFilter{
		OrderID: c.Query("order_id"),
		Email:   c.Query("email"),
		Status:  domain.LinkStatus(c.Query("status")),
	}
}

// renderError maps the error taxonomy onto HTTP statuses and user-facing
// messages.
func (h *handler) renderError(c *gin.Context, err error) {
	var vErr *domain.ValidationError
	var gErr *payment.GatewayError

	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": vErr.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "Invalid payment link."})
	case errors.Is(err, domain.ErrLinkExpired):
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Payment link expired."})
	case errors.Is(err, domain.ErrAlreadyCompleted):
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Payment already completed."})
	case errors.Is(err, domain.ErrPaymentNotCompleted):
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Payment has not been completed."})
	case errors.Is(err, domain.ErrTokenMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Session mismatch: Payment token does not match."})
	case errors.As(err, &gErr):
		c.JSON(http.StatusBadGateway, gin.H{"status": "error", "message": "Payment gateway error."})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Internal server error."})
	}
}
