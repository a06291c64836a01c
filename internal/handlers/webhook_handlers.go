package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"eventpay/internal/services"
)

type WebhookHandler struct {
	engine *services.ReconcileEngine
}

func NewWebhookHandler(engine *services.ReconcileEngine) *WebhookHandler {
	return &WebhookHandler{engine: engine}
}

// HandleGatewayWebhook receives signed gateway notifications. The raw
// body goes to the engine untouched because the signature covers it.
// 4xx means the gateway should not retry (bad signature, malformed
// payload); 5xx means it should.
func (h *WebhookHandler) HandleGatewayWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	result, err := h.engine.HandleEvent(c.Request().Context(), body)
	if err != nil {
		// The error handler maps signature/validation failures to 4xx
		// and everything else to a retryable 5xx
		return err
	}

	return c.JSON(http.StatusOK, result)
}
