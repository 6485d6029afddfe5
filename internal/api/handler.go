package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"billing-service/internal/service"
	"billing-service/internal/store"
	"billing-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orderService    *service.OrderService
	discountService *service.DiscountService
	invoiceService  *service.InvoiceService
}

// NewHandler creates a new HTTP handler
func NewHandler(orderService *service.OrderService, discountService *service.DiscountService, invoiceService *service.InvoiceService) *Handler {
	return &Handler{
		orderService:    orderService,
		discountService: discountService,
		invoiceService:  invoiceService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/discounts/validate", h.validateDiscount)

		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.PATCH("/orders/:id/status", h.updateOrderStatus)
		v1.PATCH("/orders/:id/payment-status", h.updatePaymentStatus)
		v1.POST("/orders/:id/invoice", h.generateInvoice)
		v1.GET("/orders/:id/invoice/document", h.getOrderInvoiceDocument)

		v1.GET("/invoices/:id", h.getInvoice)
		v1.GET("/invoices/:id/document", h.getInvoiceDocument)
		v1.POST("/invoices/:id/mark-paid", h.markInvoicePaid)
		v1.POST("/invoices/:id/cancel", h.cancelInvoice)

		v1.GET("/exports/invoices", h.exportInvoices)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type validateDiscountRequest struct {
	Code       string             `json:"code"`
	Items      []service.CartLine `json:"items" binding:"required"`
	CustomerID *int64             `json:"customer_id,omitempty"`
}

// validateDiscount checks a code against a cart without creating anything.
// A rejected code is a valid answer, so it returns 200 with the reason.
func (h *Handler) validateDiscount(c *gin.Context) {
	var req validateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	applied, err := h.discountService.Validate(c.Request.Context(), req.Code, req.Items, req.CustomerID)
	if err != nil {
		if service.IsRejection(err) {
			c.JSON(http.StatusOK, gin.H{
				"valid":  false,
				"reason": service.ReasonCode(err),
				"error":  err.Error(),
			})
			return
		}
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":    true,
		"discount": applied,
	})
}

// createOrder handles checkout finalization
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := h.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type updateStatusRequest struct {
	Status         string  `json:"status" binding:"required"`
	TrackingNumber *string `json:"tracking_number,omitempty"`
}

// updateOrderStatus moves an order through the fulfillment machine
func (h *Handler) updateOrderStatus(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), orderID, req.Status, req.TrackingNumber)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

type updatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required"`
}

// updatePaymentStatus toggles the payment flag for manual reconciliation
func (h *Handler) updatePaymentStatus(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req updatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orderService.UpdatePaymentStatus(c.Request.Context(), orderID, req.PaymentStatus)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// generateInvoice issues the invoice for an order. Replays return the
// existing document with 200 instead of 201.
func (h *Handler) generateInvoice(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	invoice, items, created, err := h.invoiceService.Generate(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"invoice": invoice,
		"items":   items,
	})
}

// getInvoice handles get invoice by ID
func (h *Handler) getInvoice(c *gin.Context) {
	invoiceID, ok := pathID(c)
	if !ok {
		return
	}

	invoice, items, err := h.invoiceService.Get(c.Request.Context(), invoiceID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"invoice": invoice,
		"items":   items,
	})
}

// getInvoiceDocument streams the rendered PDF
func (h *Handler) getInvoiceDocument(c *gin.Context) {
	invoiceID, ok := pathID(c)
	if !ok {
		return
	}

	invoice, data, err := h.invoiceService.Document(c.Request.Context(), invoiceID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s.pdf", invoice.InvoiceNumber))
	c.Data(http.StatusOK, "application/pdf", data)
}

// getOrderInvoiceDocument streams the PDF addressed by order instead of
// invoice
func (h *Handler) getOrderInvoiceDocument(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	invoice, data, err := h.invoiceService.DocumentByOrder(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s.pdf", invoice.InvoiceNumber))
	c.Data(http.StatusOK, "application/pdf", data)
}

type markPaidRequest struct {
	PaidAt *time.Time `json:"paid_at"`
}

// markInvoicePaid settles an issued invoice
func (h *Handler) markInvoicePaid(c *gin.Context) {
	invoiceID, ok := pathID(c)
	if !ok {
		return
	}

	var req markPaidRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request body",
				"details": err.Error(),
			})
			return
		}
	}

	invoice, err := h.invoiceService.MarkPaid(c.Request.Context(), invoiceID, req.PaidAt)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, invoice)
}

type cancelInvoiceRequest struct {
	Note string `json:"note" binding:"required"`
}

// cancelInvoice voids an issued invoice with a reason
func (h *Handler) cancelInvoice(c *gin.Context) {
	invoiceID, ok := pathID(c)
	if !ok {
		return
	}

	var req cancelInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	invoice, err := h.invoiceService.Cancel(c.Request.Context(), invoiceID, req.Note)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, invoice)
}

// exportInvoices produces the bookkeeping XML for paid invoices issued in
// [from, to], both dates inclusive.
func (h *Handler) exportInvoices(c *gin.Context) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or missing 'from' date, expected YYYY-MM-DD"})
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or missing 'to' date, expected YYYY-MM-DD"})
		return
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'to' must not precede 'from'"})
		return
	}

	data, err := h.invoiceService.ExportPeriod(c.Request.Context(), from, to.AddDate(0, 0, 1).Add(-time.Second))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoices-%s-%s.xml", c.Query("from"), c.Query("to")))
	c.Data(http.StatusOK, "application/xml", data)
}

// writeError maps service and store errors onto the HTTP surface: 404 for
// missing rows, 409 for lost races and illegal transitions, 422 with a
// stable reason for business rejections, 500 otherwise.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, store.ErrConflict), errors.Is(err, service.ErrIllegalTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case service.IsRejection(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  err.Error(),
			"reason": service.ReasonCode(err),
		})
	case errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrProductUnavailable),
		errors.Is(err, service.ErrShippingMethod),
		errors.Is(err, service.ErrPaymentMethod):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
