// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"coldvault-go/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError 把服务层错误映射为 HTTP 状态码。
func writeError(c *gin.Context, log *zap.SugaredLogger, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrArchiveNotFound), errors.Is(err, service.ErrConnectionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrEmptyArchive):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFullyUploaded), errors.Is(err, service.ErrConnectionInvalid),
		errors.Is(err, service.ErrAlreadyPlanned):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Errorf("[%s] 请求处理失败: %v", op, err)
		c.JSON(status, gin.H{"error": "服务器内部错误"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
