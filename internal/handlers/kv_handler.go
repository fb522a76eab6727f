package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"kvstore-api/internal/apperrors"
	"kvstore-api/internal/connection"
	"kvstore-api/internal/keys"
	"kvstore-api/internal/kv"
	"kvstore-api/internal/realtime"
	"kvstore-api/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CreateRequest represents the request payload for creating a key.
// Both fields are decoded later so numbers and strings are accepted.
type CreateRequest struct {
	Key   json.RawMessage `json:"key"`
	Value json.RawMessage `json:"value"`
}

// KVHandler serves the create, read and delete endpoints. Every operation
// runs on a pool worker using that worker's own store connection.
type KVHandler struct {
	pool   *worker.Pool
	svc    *kv.Service
	hub    *realtime.Hub
	logger *zap.Logger
}

// NewKVHandler wires a handler. hub may be nil to disable change events.
func NewKVHandler(pool *worker.Pool, svc *kv.Service, hub *realtime.Hub, logger *zap.Logger) *KVHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KVHandler{pool: pool, svc: svc, hub: hub, logger: logger}
}

/*
*
Create handles POST /create
Upserts {"key": ..., "value": ...}
*/
func (h *KVHandler) Create(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty body"})
		return
	}

	var req CreateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if req.Key == nil || req.Value == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing key or value"})
		return
	}

	key, err := keys.ParseJSON(req.Key)
	if err != nil {
		h.fail(c, err)
		return
	}
	value, err := keys.StringifyValue(req.Value)
	if err != nil {
		h.fail(c, err)
		return
	}

	err = h.pool.Do(c.Request.Context(), func(ctx context.Context, m *connection.Manager) error {
		return h.svc.Create(ctx, m, key, value)
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	h.publish(realtime.OpCreate, key)
	c.JSON(http.StatusOK, gin.H{"message": "Created", "key": key})
}

/*
*
Read handles GET /read/:key
*/
func (h *KVHandler) Read(c *gin.Context) {
	key, err := keys.Parse(c.Param("key"))
	if err != nil {
		h.fail(c, err)
		return
	}

	var value string
	err = h.pool.Do(c.Request.Context(), func(ctx context.Context, m *connection.Manager) error {
		var err error
		value, err = h.svc.Read(ctx, m, key)
		return err
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

/*
*
Delete handles DELETE /delete/:key
*/
func (h *KVHandler) Delete(c *gin.Context) {
	key, err := keys.Parse(c.Param("key"))
	if err != nil {
		h.fail(c, err)
		return
	}

	err = h.pool.Do(c.Request.Context(), func(ctx context.Context, m *connection.Manager) error {
		return h.svc.Delete(ctx, m, key)
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	h.publish(realtime.OpDelete, key)
	c.JSON(http.StatusOK, gin.H{"message": "Deleted", "key": key})
}

func (h *KVHandler) publish(op string, key int64) {
	if h.hub == nil {
		return
	}
	h.hub.Publish(realtime.Event{Op: op, Key: key})
}

// fail writes the error response for err.
func (h *KVHandler) fail(c *gin.Context, err error) {
	_ = c.Error(err)

	status := apperrors.HTTPStatus(err)
	msg := "DB Error"
	switch {
	case errors.Is(err, worker.ErrPoolClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
		msg = "Server busy"
	case status == http.StatusBadRequest:
		var e *apperrors.Error
		if errors.As(err, &e) {
			msg = e.Message
		}
	case status == http.StatusNotFound:
		msg = "Not found"
	case status == http.StatusServiceUnavailable:
		msg = "Store unavailable"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Warn("kv operation failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}
