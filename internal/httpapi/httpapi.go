// Package httpapi exposes the health probes and a read-only view of the
// auctions over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/discord-auction-bot/internal/auction"
	"github.com/jensholdgaard/discord-auction-bot/internal/health"
)

// maxPageSize bounds the size query parameter.
const maxPageSize = 100

// Auctions is the read side of the auction engine.
type Auctions interface {
	ListOpenAuctions(ctx context.Context) ([]auction.Summary, error)
	GetAuction(ctx context.Context, auctionID int64) (*auction.Snapshot, error)
	History(ctx context.Context, auctionID int64) (*auction.Auction, error)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// NewRouter builds the gin engine. service names the otelgin spans.
func NewRouter(service string, auctions Auctions, probes *health.Handler, logger *slog.Logger, tp trace.TracerProvider) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(service, otelgin.WithTracerProvider(tp)))
	r.Use(requestLogger(logger))

	probes.Register(r)

	h := &handler{auctions: auctions, logger: logger}
	a := r.Group("/auctions")
	{
		a.GET("", h.list)
		a.GET("/:id", h.get)
		a.GET("/:id/history", h.history)
	}
	return r
}

// requestLogger logs each request once it completes.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.DebugContext(c.Request.Context(), "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

type handler struct {
	auctions Auctions
	logger   *slog.Logger
}

// list serves GET /auctions?page=N&size=M.
func (h *handler) list(c *gin.Context) {
	page, err := intQuery(c, "page", 1)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "page must be an integer"})
		return
	}
	size, err := intQuery(c, "size", auction.DefaultPageSize)
	if err != nil || size < 1 || size > maxPageSize {
		c.JSON(http.StatusBadRequest, errorBody{Error: "size must be an integer between 1 and " + strconv.Itoa(maxPageSize)})
		return
	}

	list, err := h.auctions.ListOpenAuctions(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, auction.Paginate(list, page, size))
}

// get serves GET /auctions/:id.
func (h *handler) get(c *gin.Context) {
	id, ok := auctionID(c)
	if !ok {
		return
	}

	snap, err := h.auctions.GetAuction(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// history serves GET /auctions/:id/history: the auction as rebuilt from its
// event log.
func (h *handler) history(c *gin.Context) {
	id, ok := auctionID(c)
	if !ok {
		return
	}

	a, err := h.auctions.History(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a.Auction)
}

func auctionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorBody{Error: "auction id must be a positive integer"})
		return 0, false
	}
	return id, true
}

func (h *handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auction.ErrNotFound):
		c.JSON(http.StatusNotFound, errorBody{Error: "auction not found"})
	case errors.Is(err, auction.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, errorBody{Error: "storage unavailable"})
	default:
		h.logger.ErrorContext(c.Request.Context(), "request failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
