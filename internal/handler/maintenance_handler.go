package handler

import (
	"context"
	"net/http"

	"coldvault-go/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dispatcher 执行一轮传输任务分发。
type Dispatcher interface {
	RunOnce(ctx context.Context) (int, error)
}

// Reconciler 执行一次远端对账。
type Reconciler interface {
	Run(ctx context.Context) (service.ReconcileReport, error)
}

// Assembler 尝试恢复所有可组装的归档。
type Assembler interface {
	RunAll(ctx context.Context) (int, error)
}

// MaintenanceHandler 允许外部调度方按需触发后台任务。
type MaintenanceHandler struct {
	dispatcher Dispatcher
	reconciler Reconciler
	assembler  Assembler
	archives   service.ArchiveService
	log        *zap.SugaredLogger
}

// NewMaintenanceHandler 创建一个新的 MaintenanceHandler 实例。
func NewMaintenanceHandler(d Dispatcher, r Reconciler, a Assembler, archives service.ArchiveService, log *zap.SugaredLogger) *MaintenanceHandler {
	return &MaintenanceHandler{dispatcher: d, reconciler: r, assembler: a, archives: archives, log: log}
}

func (h *MaintenanceHandler) Dispatch(c *gin.Context) {
	n, err := h.dispatcher.RunOnce(c.Request.Context())
	if err != nil {
		writeError(c, h.log, "Dispatch", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": n})
}

func (h *MaintenanceHandler) Reconcile(c *gin.Context) {
	report, err := h.reconciler.Run(c.Request.Context())
	if err != nil {
		writeError(c, h.log, "Reconcile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"healthy":        report.Healthy,
		"unhealthy":      report.Unhealthy,
		"remoteDeleted":  report.RemoteDeleted,
		"uploadsQueued":  report.UploadsQueued,
		"orphansDeleted": report.OrphansDeleted,
		"errors":         report.Errors,
	})
}

func (h *MaintenanceHandler) Assemble(c *gin.Context) {
	n, err := h.assembler.RunAll(c.Request.Context())
	if err != nil {
		writeError(c, h.log, "Assemble", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restored": n})
}

func (h *MaintenanceHandler) SyncLocal(c *gin.Context) {
	if err := h.archives.SyncLocalArchives(c.Request.Context()); err != nil {
		writeError(c, h.log, "SyncLocal", err)
		return
	}
	c.Status(http.StatusNoContent)
}
