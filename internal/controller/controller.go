package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"returns-reconciliation-service/internal/dto"
	"returns-reconciliation-service/internal/logger"
	"returns-reconciliation-service/internal/model"
	"returns-reconciliation-service/internal/repository"
	"returns-reconciliation-service/internal/service"
	"returns-reconciliation-service/internal/source"
)

// RunReader lists recent sync reports.
type RunReader interface {
	RecentRuns(ctx context.Context, limit int64) ([]model.SyncRun, error)
}

type ReturnsController struct {
	Returns     *service.ReturnsService
	Coordinator *service.Coordinator
	Runs        RunReader
	Log         *zap.Logger
}

func NewReturnsController(r *service.ReturnsService, c *service.Coordinator, runs RunReader, log *zap.Logger) *ReturnsController {
	return &ReturnsController{Returns: r, Coordinator: c, Runs: runs, Log: log}
}

// GET /returns?source=&internalStatus=&limit=&offset=
func (ctl *ReturnsController) ListReturns(c *gin.Context) {
	f := repository.ReturnFilter{
		Source:         model.Source(c.Query("source")),
		InternalStatus: c.Query("internalStatus"),
		Limit:          queryInt(c, "limit", 0),
		Offset:         queryInt(c, "offset", 0),
	}
	returns, err := ctl.Returns.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, ctl.Log, err)
		return
	}
	if returns == nil {
		returns = []model.Return{}
	}
	c.JSON(http.StatusOK, returns)
}

// GET /returns/:id
func (ctl *ReturnsController) GetReturn(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	r, err := ctl.Returns.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, ctl.Log, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// PATCH /returns/:id/status, requires returns:write
func (ctl *ReturnsController) UpdateStatus(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := ctl.Returns.UpdateStatus(c.Request.Context(), id, req.InternalStatus, req.ErpStatus, c.GetString("userID"))
	if err != nil {
		writeError(c, ctl.Log, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// GET /returns/:id/history
func (ctl *ReturnsController) History(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	h, err := ctl.Returns.History(c.Request.Context(), id)
	if err != nil {
		writeError(c, ctl.Log, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

// POST /sync/:source, requires returns:write
func (ctl *ReturnsController) RunSync(c *gin.Context) {
	src := model.Source(c.Param("source"))

	var req dto.SyncBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	day, err := time.Parse(service.DateLayout, req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	run, err := ctl.Coordinator.RunBatch(c.Request.Context(), src, day, req.Payloads)
	if err != nil {
		writeError(c, ctl.Log, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// GET /sync/runs?limit=
func (ctl *ReturnsController) ListRuns(c *gin.Context) {
	runs, err := ctl.Runs.RecentRuns(c.Request.Context(), int64(queryInt(c, "limit", 20)))
	if err != nil {
		writeError(c, ctl.Log, err)
		return
	}
	if runs == nil {
		runs = []model.SyncRun{}
	}
	c.JSON(http.StatusOK, runs)
}

func paramID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// writeError maps business errors to HTTP status codes.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, repository.ErrAttachmentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidSource),
		errors.Is(err, service.ErrInvalidSubmission),
		errors.Is(err, source.ErrUnknownSource):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSyncInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.FromGin(c, log).Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
