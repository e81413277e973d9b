package handler

import (
	"net/http"

	"coldvault-go/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ConnectionHandler 负责远端连接相关的 API 请求。
type ConnectionHandler struct {
	conns service.ConnectionService
	log   *zap.SugaredLogger
}

// NewConnectionHandler 创建一个新的 ConnectionHandler 实例。
func NewConnectionHandler(conns service.ConnectionService, log *zap.SugaredLogger) *ConnectionHandler {
	return &ConnectionHandler{conns: conns, log: log}
}

// CreateConnectionRequest 定义了创建连接 API 的请求体结构。
type CreateConnectionRequest struct {
	Name      string `json:"name" binding:"required"`
	AccessKey string `json:"accessKey" binding:"required"`
	SecretKey string `json:"secretKey" binding:"required"`
	Region    string `json:"region" binding:"required"`
}

func (h *ConnectionHandler) Create(c *gin.Context) {
	var req CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}
	conn, err := h.conns.Create(c.Request.Context(), service.CreateConnectionInput{
		Name:      req.Name,
		AccessKey: req.AccessKey,
		SecretKey: req.SecretKey,
		Region:    req.Region,
	})
	if err != nil {
		writeError(c, h.log, "CreateConnection", err)
		return
	}
	c.JSON(http.StatusCreated, conn)
}

func (h *ConnectionHandler) List(c *gin.Context) {
	conns, err := h.conns.List(c.Request.Context())
	if err != nil {
		writeError(c, h.log, "ListConnections", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": conns})
}

func (h *ConnectionHandler) Validate(c *gin.Context) {
	valid, err := h.conns.Revalidate(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, "ValidateConnection", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isValid": valid})
}

func (h *ConnectionHandler) Activate(c *gin.Context) {
	if err := h.conns.Activate(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.log, "ActivateConnection", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ConnectionHandler) Deactivate(c *gin.Context) {
	if err := h.conns.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.log, "DeactivateConnection", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ConnectionHandler) Delete(c *gin.Context) {
	if err := h.conns.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.log, "DeleteConnection", err)
		return
	}
	c.Status(http.StatusNoContent)
}
