package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tradepilot/internal/common"
	"tradepilot/internal/server/service"
)

const timestampMaxAge = 300

// WebhookHandler triggers a pipeline run from an external system. Requests
// carry X-Webhook-Timestamp and X-Webhook-Signature, the hex HMAC-SHA256 of
// "<timestamp>.<pipeline id>.<body>" keyed by the shared secret.
type WebhookHandler struct {
	svc    *service.PipelineService
	secret []byte
	now    func() time.Time
}

func NewWebhookHandler(svc *service.PipelineService, secret string) *WebhookHandler {
	return &WebhookHandler{svc: svc, secret: []byte(secret), now: time.Now}
}

func Sign(secret []byte, timestamp, pipelineID string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write([]byte(pipelineID))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *WebhookHandler) Trigger(c *gin.Context) {
	timestampStr := c.GetHeader("X-Webhook-Timestamp")
	signature := c.GetHeader("X-Webhook-Signature")
	if timestampStr == "" || signature == "" {
		common.Error(c, common.NewErrNo(common.TokenInvalid))
		return
	}

	timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
	if err != nil {
		common.Error(c, common.NewErrNo(common.RequestInvalid))
		return
	}
	now := h.now().Unix()
	if now-timestamp > timestampMaxAge || timestamp > now {
		common.Error(c, common.NewErrNo(common.TokenInvalid))
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		common.Error(c, common.NewErrNo(common.RequestInvalid))
		return
	}
	pipelineID := c.Param("id")
	expected := Sign(h.secret, timestampStr, pipelineID, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		common.Error(c, common.NewErrNo(common.TokenInvalid))
		return
	}

	entry, err := h.svc.RunByID(c, pipelineID)
	if err != nil {
		common.Error(c, err)
		return
	}
	common.Success(c, entry)
}
