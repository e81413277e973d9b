package handler

import (
	"net/http"

	"coldvault-go/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ArchiveHandler 负责归档相关的 API 请求。
type ArchiveHandler struct {
	archives service.ArchiveService
	log      *zap.SugaredLogger
}

// NewArchiveHandler 创建一个新的 ArchiveHandler 实例。
func NewArchiveHandler(archives service.ArchiveService, log *zap.SugaredLogger) *ArchiveHandler {
	return &ArchiveHandler{archives: archives, log: log}
}

// Create 处理 multipart 上传：字段 file（必填）、owner（必填）、name（可选）。
func (h *ArchiveHandler) Create(c *gin.Context) {
	owner := c.PostForm("owner")
	fileHeader, err := c.FormFile("file")
	if err != nil || owner == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少必要的参数 file 或 owner"})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无法读取上传文件"})
		return
	}
	defer f.Close()

	archive, err := h.archives.CreateArchive(c.Request.Context(), owner, c.PostForm("name"), fileHeader.Filename, f)
	if err != nil {
		writeError(c, h.log, "CreateArchive", err)
		return
	}
	c.JSON(http.StatusCreated, archive)
}

func (h *ArchiveHandler) List(c *gin.Context) {
	archives, err := h.archives.ListArchives(c.Request.Context(), c.Query("owner"))
	if err != nil {
		writeError(c, h.log, "ListArchives", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archives": archives})
}

// Get 返回归档及其分片状态。
func (h *ArchiveHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	archive, err := h.archives.GetArchive(ctx, c.Param("id"))
	if err != nil {
		writeError(c, h.log, "GetArchive", err)
		return
	}
	parts, err := h.archives.ListParts(ctx, archive.ID)
	if err != nil {
		writeError(c, h.log, "GetArchive", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archive": archive, "parts": parts})
}

func (h *ArchiveHandler) RequestCache(c *gin.Context) {
	n, err := h.archives.RequestCache(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, "RequestCache", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"scheduled": n})
}

func (h *ArchiveHandler) CanRelease(c *gin.Context) {
	ok, err := h.archives.CanReleaseLocalCopy(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, "CanReleaseLocalCopy", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"releasable": ok})
}

func (h *ArchiveHandler) Release(c *gin.Context) {
	if err := h.archives.ReleaseLocalCopy(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.log, "ReleaseLocalCopy", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ArchiveHandler) Delete(c *gin.Context) {
	if err := h.archives.DeleteArchive(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.log, "DeleteArchive", err)
		return
	}
	c.Status(http.StatusNoContent)
}
