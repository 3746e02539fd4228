package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appService "github.com/ScalabilityIssues/validation-service/internal/application/service"
	domainService "github.com/ScalabilityIssues/validation-service/internal/domain/service"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

// KeysHandler publishes the verification key as a JSON Web Key Set.
type KeysHandler struct {
	keys    appService.KeyPublisher
	metrics domainService.Metrics
	logger  logger.Logger
}

// NewKeysHandler creates a KeysHandler.
func NewKeysHandler(keys appService.KeyPublisher, metrics domainService.Metrics, log logger.Logger) *KeysHandler {
	if metrics == nil {
		metrics = domainService.NewNoopMetrics()
	}
	return &KeysHandler{keys: keys, metrics: metrics, logger: log.WithComponent("KeysHandler")}
}

// GetJWKS serves the key set. Keys are OKP/Ed25519 with kid set to the RFC
// 7638 thumbprint.
func (h *KeysHandler) GetJWKS(c *gin.Context) {
	h.metrics.RecordKeyRequest()
	c.Header("Content-Type", "application/jwk-set+json")
	c.JSON(http.StatusOK, h.keys.JWKS())
}
