package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"returns-reconciliation-service/internal/dto"
	"returns-reconciliation-service/internal/service"
)

type FormsController struct {
	Forms *service.FormsService
	Log   *zap.Logger
}

func NewFormsController(f *service.FormsService, log *zap.Logger) *FormsController {
	return &FormsController{Forms: f, Log: log}
}

// POST /forms, public intake endpoint
func (ctl *FormsController) Submit(c *gin.Context) {
	var req dto.FormSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := ctl.Forms.Submit(c.Request.Context(), req)
	if err != nil {
		writeError(c, ctl.Log, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GET /forms/return-number
func (ctl *FormsController) NextReturnNumber(c *gin.Context) {
	number, err := ctl.Forms.NextReturnNumber(c.Request.Context())
	if err != nil {
		writeError(c, ctl.Log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ReturnNumberResponse{ReturnNumber: number})
}

// GET /submissions/:number/photos
func (ctl *FormsController) ListPhotos(c *gin.Context) {
	photos, err := ctl.Forms.Attachments(c.Request.Context(), c.Param("number"))
	if err != nil {
		writeError(c, ctl.Log, err)
		return
	}
	out := make([]dto.AttachmentResponse, 0, len(photos))
	for _, p := range photos {
		out = append(out, dto.AttachmentResponse{
			ID:         p.ID,
			ProductEAN: p.ProductEAN,
			MimeType:   p.MimeType,
			CreatedAt:  p.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

// GET /photos/:id, raw image bytes
func (ctl *FormsController) GetPhoto(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	p, err := ctl.Forms.Attachment(c.Request.Context(), id)
	if err != nil {
		writeError(c, ctl.Log, err)
		return
	}
	c.Data(http.StatusOK, p.MimeType, p.Data)
}

// Pinger checks a backing dependency.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health answers GET /health with the database reachability.
func Health(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
