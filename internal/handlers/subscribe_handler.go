package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"signup-go/internal/gateway"
	"signup-go/internal/logging"
)

const maxBodyBytes = 1 << 20

type SubscribeHandler struct {
	gateway *gateway.Gateway
	logger  *logging.ContextLogger
	tracer  trace.Tracer
}

func NewSubscribeHandler(gw *gateway.Gateway, logger *logging.ContextLogger) *SubscribeHandler {
	return &SubscribeHandler{
		gateway: gw,
		logger:  logger,
		tracer:  otel.Tracer("subscribe-handler"),
	}
}

// Subscribe serves every method on the subscribe route; the gateway rejects
// anything but POST.
func (h *SubscribeHandler) Subscribe(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "subscribe.handler.subscribe")
	defer span.End()

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		h.logger.WarnWithTracing(ctx, "Failed to read request body", logrus.Fields{
			"error":    err.Error(),
			"endpoint": c.FullPath(),
		})
		span.RecordError(err)

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Respond(c, gateway.ErrorResult(http.StatusRequestEntityTooLarge, gateway.MsgInvalidJSON))
			return
		}
		Respond(c, gateway.ErrorResult(http.StatusBadRequest, gateway.MsgInvalidJSON))
		return
	}

	Respond(c, h.gateway.Handle(ctx, c.Request.Method, body))
}

// NoRoute answers unknown paths: 405 for non-POST methods, 404 otherwise.
func (h *SubscribeHandler) NoRoute(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		Respond(c, gateway.MethodNotAllowed())
		return
	}
	Respond(c, gateway.NotFound())
}

func Respond(c *gin.Context, result gateway.Result) {
	for key, value := range gateway.Headers() {
		c.Header(key, value)
	}
	c.Data(result.StatusCode, "application/json", result.JSON())
}
