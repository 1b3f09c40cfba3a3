// Package server is the HTTP boundary: it owns the upload transport and the
// read/export endpoints, delegating all document work to the processor.
package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/oluwaseun-a/po-tracker/constants"
	"github.com/oluwaseun-a/po-tracker/internal/entity"
	"github.com/oluwaseun-a/po-tracker/internal/export"
	"github.com/oluwaseun-a/po-tracker/internal/failure"
	"github.com/oluwaseun-a/po-tracker/internal/pipeline"
	"github.com/oluwaseun-a/po-tracker/internal/repository"
)

type Handler struct {
	proc      *pipeline.Processor
	orders    repository.OrderRepository
	exporter  *export.Service
	logger    *zap.Logger
	maxUpload int64
}

func NewHandler(proc *pipeline.Processor, orders repository.OrderRepository, exporter *export.Service, maxUploadMB int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}
	return &Handler{
		proc:      proc,
		orders:    orders,
		exporter:  exporter,
		logger:    logger,
		maxUpload: int64(maxUploadMB) << 20,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.health)
	api := router.Group("/api")
	api.POST("/orders", h.uploadOrder)
	api.GET("/orders", h.listOrders)
	api.GET("/orders/:number", h.getOrder)
	api.PATCH("/orders/:number/status", h.updateStatus)
	api.GET("/orders/export", h.exportOrders)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// uploadOrder ingests one purchase-order document. On pipeline failure the
// response carries the failure kind and the resolved recovery strategy so
// the UI can decide between retry, checklist and operator escalation.
func (h *Handler) uploadOrder(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}
	if file.Size > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open upload"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
		return
	}

	po, err := h.proc.Process(c.Request.Context(), pipeline.Upload{
		Data:     data,
		Filename: file.Filename,
	})
	if err != nil {
		h.renderFailure(c, file.Filename, err)
		return
	}

	if h.orders != nil {
		if err := h.orders.Save(c.Request.Context(), po); err != nil {
			h.logger.Error("order save failed", zap.String("po_number", po.PONumber), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "order extracted but could not be stored"})
			return
		}
	}
	c.JSON(http.StatusCreated, gin.H{"order": po})
}

func (h *Handler) listOrders(c *gin.Context) {
	from, to, ok := h.dateWindow(c)
	if !ok {
		return
	}
	orders, err := h.orders.List(c.Request.Context(), from, to)
	if err != nil {
		h.logger.Warn("list orders failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list orders failed"})
		return
	}
	if orders == nil {
		orders = []*entity.PurchaseOrder{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	po, err := h.orders.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": po})
}

func (h *Handler) updateStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
		User   string `json:"user"`
		Notes  string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	status, ok := constants.CanonicalStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}
	if err := h.orders.UpdateStatus(c.Request.Context(), c.Param("number"), status, req.User, req.Notes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(status)})
}

func (h *Handler) exportOrders(c *gin.Context) {
	from, to, ok := h.dateWindow(c)
	if !ok {
		return
	}
	b, err := h.exporter.ExportOrdersXLSX(c.Request.Context(), from, to)
	if err != nil {
		h.logger.Warn("export failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="purchase-orders.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", b)
}

func (h *Handler) dateWindow(c *gin.Context) (from, to *time.Time, ok bool) {
	parse := func(name string) (*time.Time, bool) {
		v := c.Query(name)
		if v == "" {
			return nil, true
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be YYYY-MM-DD"})
			return nil, false
		}
		return &t, true
	}
	if from, ok = parse("from"); !ok {
		return nil, nil, false
	}
	if to, ok = parse("to"); !ok {
		return nil, nil, false
	}
	return from, to, true
}

// renderFailure maps taxonomy kinds onto HTTP statuses. Validation failures
// are an editable checklist, llm/processing failures a "try again",
// configuration/feature failures an operator-facing setup problem.
func (h *Handler) renderFailure(c *gin.Context, filename string, err error) {
	f, ok := failure.As(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.logger.Warn("ingest failed",
		zap.String("filename", filename),
		zap.String("kind", string(f.Kind)),
		zap.String("strategy", string(f.Strategy)),
		zap.Error(f),
	)

	body := gin.H{
		"error":    f.Message,
		"kind":     string(f.Kind),
		"strategy": string(f.Strategy),
	}
	if len(f.Fields) > 0 {
		body["validation_errors"] = f.Fields
	}
	if len(f.Warnings) > 0 {
		body["validation_warnings"] = f.Warnings
	}
	if f.Usage != nil {
		body["token_usage"] = f.Usage
	}

	var status int
	switch f.Kind {
	case failure.KindValidation:
		status = http.StatusUnprocessableEntity
	case failure.KindParsing:
		status = http.StatusUnprocessableEntity
	case failure.KindLLM:
		status = http.StatusBadGateway
	case failure.KindFeature:
		status = http.StatusNotImplemented
	case failure.KindConfiguration:
		status = http.StatusInternalServerError
	default:
		status = http.StatusInternalServerError
	}
	c.JSON(status, body)
}
