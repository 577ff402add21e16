package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clubgate/clubgate/internal/app/service/intake"
	"github.com/clubgate/clubgate/internal/app/service/membership"
	"github.com/clubgate/clubgate/pkg/logctx"
)

// SignatureHeader carries the gateway's HMAC over the raw request body.
const SignatureHeader = "X-Signature"

// @Summary      Payment Gateway Webhook
// @Description  Receives payment notifications. The body must be the exact bytes the X-Signature HMAC was computed over.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        X-Signature header string true "Hex HMAC-SHA256 of the raw body"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /webhook [post]
func ApiGatewayWebhook(h *intake.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "unreadable body"})
			return
		}

		out, err := h.Handle(c.Request.Context(), body, c.GetHeader(SignatureHeader), c.GetString("traceID"))
		switch {
		case errors.Is(err, intake.ErrBadSignature),
			errors.Is(err, intake.ErrMalformed),
			errors.Is(err, membership.ErrUnknownPlan):
			logctx.FromCtx(c, h.Logger).Warnw("webhook_rejected", "error", err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
			return
		case err != nil:
			// Transient failure: a non-2xx makes the gateway redeliver, and the
			// payment id dedupe makes the redelivery safe.
			logctx.FromCtx(c, h.Logger).Errorw("webhook_handle_error", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": string(out.Status)})
	}
}

// RegisterWebhookRoutes mounts the gateway notification endpoints. The renewal
// URL is an alias kept for links embedded in old reminder messages; both paths
// share one handler and one semantics.
func RegisterWebhookRoutes(r gin.IRouter, h *intake.Handler) {
	r.POST("/webhook", ApiGatewayWebhook(h))
	r.POST("/webhook/renewal", ApiGatewayWebhook(h))
}
