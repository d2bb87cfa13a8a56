// Package httpapi is the thin demo HTTP surface over the scan
// pipeline: POST /api/v1/scan submits a transaction through the
// admission layer and blocks for the verdict, GET /api/v1/health
// reports admitter/cache status, and GET /api/v1/stream upgrades to a
// websocket feed of completed scans. Every collaborator the core
// pipeline is agnostic to (auth, payment, persistence-of-record) stays
// out of scope here too — this is a reference caller, not the product.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rawblock/txscan-engine/internal/admission"
	"github.com/rawblock/txscan-engine/internal/model"
	"github.com/rawblock/txscan-engine/internal/orchestrator"
	"github.com/rawblock/txscan-engine/internal/parser"
	"github.com/rawblock/txscan-engine/internal/scanerrors"
)

// walletIDLength mirrors the parser's 32-byte decoded base58 convention.
const walletIDLength = 32

// ScanResultCache is the narrow result-cache contract the handler
// needs, declared locally to avoid importing internal/cache directly.
type ScanResultCache interface {
	GetScanResult(ctx context.Context, fingerprint string) (model.ScanResult, bool)
	SetScanResult(ctx context.Context, fingerprint string, result model.ScanResult)
}

// StreamSubscriber upgrades a request to a websocket feed of completed
// scans. Satisfied by *events.WSBroadcastSink.
type StreamSubscriber interface {
	Subscribe(c *gin.Context)
}

// CatalogueStatus reports the pattern catalogue's active snapshot
// generation. Satisfied by *patterns.Catalogue.
type CatalogueStatus interface {
	Version() int64
}

// BreakerStatus reports a circuit breaker's current state as a
// string. Satisfied by *cache.Cache and *admission.Admitter.
type BreakerStatus interface {
	BreakerState() string
}

// Handler wires the admission layer and orchestrator into gin routes.
type Handler struct {
	admitter         *admission.Admitter
	orchestrator     *orchestrator.Orchestrator
	parser           *parser.Parser
	resultCache      ScanResultCache
	pipelineDeadline time.Duration
	catalogue        CatalogueStatus
	cacheBreaker     BreakerStatus
}

// HandlerOption configures optional status-reporting collaborators.
type HandlerOption func(*Handler)

// WithStatus wires the pattern catalogue and cache breaker so
// GET /api/v1/health can report their state.
func WithStatus(catalogue CatalogueStatus, cacheBreaker BreakerStatus) HandlerOption {
	return func(h *Handler) {
		h.catalogue = catalogue
		h.cacheBreaker = cacheBreaker
	}
}

// NewHandler builds a Handler. resultCache may be nil (no result tier
// configured); the handler degrades to always invoking the pipeline.
func NewHandler(admitter *admission.Admitter, orch *orchestrator.Orchestrator, p *parser.Parser, resultCache ScanResultCache, pipelineDeadline time.Duration, opts ...HandlerOption) *Handler {
	h := &Handler{
		admitter:         admitter,
		orchestrator:     orch,
		parser:           p,
		resultCache:      resultCache,
		pipelineDeadline: pipelineDeadline,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RouterConfig holds SetupRouter's ambient, non-core knobs.
type RouterConfig struct {
	AllowedOrigins string
	AuthToken      string
	RateLimitPerMin int
	RateLimitBurst  int
}

// SetupRouter builds the gin engine: CORS, a public health/stream
// group, and an authenticated+rate-limited scan group.
func SetupRouter(h *Handler, stream StreamSubscriber, cfg RouterConfig) *gin.Engine {
	r := gin.Default()

	r.Use(corsMiddleware(cfg.AllowedOrigins))

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", h.handleHealth)
		if stream != nil {
			pub.GET("/stream", stream.Subscribe)
		}
	}

	protected := r.Group("/api/v1")
	protected.Use(AuthMiddleware(cfg.AuthToken))
	protected.Use(NewRateLimiter(cfg.RateLimitPerMin, cfg.RateLimitBurst).Middleware())
	{
		protected.POST("/scan", h.handleScan)
	}

	return r
}

// corsMiddleware mirrors the teacher's ALLOWED_ORIGINS-driven CORS
// handling: "*"/empty allows everything, otherwise an exact match
// against the comma-separated allow-list.
func corsMiddleware(allowedOrigins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// scanRequest is the caller-submitted scan payload (spec §6).
type scanRequest struct {
	Transaction any            `json:"transaction"`
	UserWallet  string         `json:"userWallet"`
	ScanType    model.ScanType `json:"scanType"`
}

func (h *Handler) handleScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	scanType := req.ScanType
	if scanType == "" {
		scanType = model.ScanQuick
	}
	if !validScanType(scanType) {
		respondError(c, scanerrors.ErrInvalidScanType)
		return
	}
	if req.UserWallet != "" && !isValidWallet(req.UserWallet) {
		respondError(c, scanerrors.ErrInvalidWallet)
		return
	}

	tx, fingerprint, err := h.parser.Parse(req.Transaction)
	if err != nil {
		respondError(c, err)
		return
	}

	if h.resultCache != nil {
		if cached, ok := h.resultCache.GetScanResult(c.Request.Context(), fingerprint); ok {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	scanID := uuid.New().String()
	deadline := time.Now().Add(h.pipelineDeadline)
	resultCh := make(chan model.ScanResult, 1)

	queued := &model.QueuedRequest{
		RequestID:   scanID,
		Priority:    model.DefaultPriority(scanType),
		EnqueuedAt:  time.Now(),
		Deadline:    deadline,
		MaxAttempts: 1,
		Handler: func() (any, error) {
			result := h.orchestrator.Scan(context.Background(), scanID, tx, req.UserWallet, scanType)
			if h.resultCache != nil {
				h.resultCache.SetScanResult(context.Background(), fingerprint, result)
			}
			resultCh <- result
			return result, nil
		},
	}

	if err := h.admitter.Submit(queued); err != nil {
		respondError(c, err)
		return
	}

	select {
	case result := <-resultCh:
		c.JSON(http.StatusOK, result)
	case <-time.After(time.Until(deadline)):
		respondError(c, scanerrors.ErrScanTimeout)
	case <-c.Request.Context().Done():
	}
}

func (h *Handler) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":         "operational",
		"admission":      h.admitter.Stats(),
		"admissionBreaker": h.admitter.BreakerState(),
	}
	if h.catalogue != nil {
		body["patternCatalogueVersion"] = h.catalogue.Version()
	}
	if h.cacheBreaker != nil {
		body["cacheBreaker"] = h.cacheBreaker.BreakerState()
	}
	c.JSON(http.StatusOK, body)
}

func validScanType(t model.ScanType) bool {
	switch t {
	case model.ScanQuick, model.ScanDeep, model.ScanComprehensive:
		return true
	default:
		return false
	}
}

// isValidWallet checks the same 32-byte decoded base58 convention the
// parser enforces for program/account identifiers.
func isValidWallet(wallet string) bool {
	decoded := base58.Decode(wallet)
	return len(decoded) == walletIDLength
}

// respondError maps the closed scanerrors taxonomy to HTTP status
// codes. Anything outside the taxonomy is a parser structural failure
// and is treated as a 422.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, scanerrors.ErrQueueFull), errors.Is(err, scanerrors.ErrBreakerOpen):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, scanerrors.ErrScanTimeout):
		c.JSON(http.StatusRequestTimeout, gin.H{"error": err.Error()})
	case errors.Is(err, scanerrors.ErrInvalidWallet), errors.Is(err, scanerrors.ErrInvalidScanType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, scanerrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, scanerrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, scanerrors.ErrPaymentRequired):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, scanerrors.ErrParse):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	}
}
