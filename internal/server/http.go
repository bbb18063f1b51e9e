package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skshohagmiah/fawldb/internal/db"
	"github.com/skshohagmiah/fawldb/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// HTTPServer exposes the document store as a JSON API
type HTTPServer struct {
	db      *db.DocStore
	metrics *Metrics
	log     *slog.Logger
	router  *gin.Engine
	srv     *http.Server
}

// NewHTTPServer builds the router. gatherer backs /metrics; nil uses the
// default Prometheus registry.
func NewHTTPServer(store *db.DocStore, addr string, metrics *Metrics, gatherer prometheus.Gatherer) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)

	h := &HTTPServer{
		db:      store,
		metrics: metrics,
		log:     logger.Component("http"),
	}

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(h.requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	collections := router.Group("/collections/:name")
	{
		collections.POST("/documents", h.insert)
		collections.GET("/documents/:id", h.get)
		collections.PATCH("/documents/:id", h.update)
		collections.DELETE("/documents/:id", h.delete)
		collections.POST("/find", h.find)
		collections.POST("/count", h.count)
		collections.POST("/delete", h.deleteMany)
	}

	h.router = router
	h.srv = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return h
}

// Handler returns the HTTP handler, mainly for tests
func (h *HTTPServer) Handler() http.Handler {
	return h.router
}

// Start serves until Shutdown is called
func (h *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", h.srv.Addr)
	if err != nil {
		return err
	}
	h.log.Info("listening", "addr", ln.Addr().String())
	if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (h *HTTPServer) Shutdown(ctx context.Context) error {
	return h.srv.Shutdown(ctx)
}

func (h *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		if h.metrics != nil {
			h.metrics.RequestTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		}
		h.log.Debug("request",
			"request_id", requestID,
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
		)
	}
}

// writeError maps store errors onto HTTP status codes
func (h *HTTPServer) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, db.ErrDocumentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, db.ErrInvalidQuery),
		errors.Is(err, db.ErrInvalidDocument),
		errors.Is(err, db.ErrInvalidCollection):
		status = http.StatusBadRequest
	default:
		h.log.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *HTTPServer) collection(c *gin.Context) (*db.Collection, bool) {
	coll, err := h.db.Collection(c.Param("name"))
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	return coll, true
}

func (h *HTTPServer) documentID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return 0, false
	}
	return id, true
}

func readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	return io.ReadAll(c.Request.Body)
}

// timed records an operation in the shared operation metrics
func (h *HTTPServer) timed(op string, start time.Time, err error) {
	status := "ok"
	switch {
	case errors.Is(err, db.ErrDocumentNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	h.metrics.observe(op, status, time.Since(start).Seconds())
}

func (h *HTTPServer) insert(c *gin.Context) {
	start := time.Now()
	coll, ok := h.collection(c)
	if !ok {
		return
	}
	body, err := readBody(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	doc, err := parseDocument(body)
	if err == nil {
		var id int64
		id, err = coll.Insert(doc)
		if err == nil {
			c.JSON(http.StatusCreated, gin.H{"id": id})
		}
	}
	h.timed("insert", start, err)
	if err != nil {
		h.writeError(c, err)
	}
}

func (h *HTTPServer) get(c *gin.Context) {
	start := time.Now()
	coll, ok := h.collection(c)
	if !ok {
		return
	}
	id, ok := h.documentID(c)
	if !ok {
		return
	}
	doc, err := coll.Get(id)
	h.timed("get", start, err)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *HTTPServer) update(c *gin.Context) {
	start := time.Now()
	coll, ok := h.collection(c)
	if !ok {
		return
	}
	id, ok := h.documentID(c)
	if !ok {
		return
	}
	body, err := readBody(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	opts, err := parseUpdateOptions(body)
	if err == nil {
		err = coll.Update(id, opts)
	}
	h.timed("update", start, err)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": 1})
}

func (h *HTTPServer) delete(c *gin.Context) {
	start := time.Now()
	coll, ok := h.collection(c)
	if !ok {
		return
	}
	id, ok := h.documentID(c)
	if !ok {
		return
	}
	err := coll.Delete(id)
	h.timed("delete", start, err)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": 1})
}

func (h *HTTPServer) find(c *gin.Context) {
	start := time.Now()
	coll, ok := h.collection(c)
	if !ok {
		return
	}
	body, err := readBody(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	opts, err := parseFindOptions(body)
	var results []db.Document
	if err == nil {
		results, err = coll.Find(opts)
	}
	h.timed("find", start, err)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.QueryResults.Observe(float64(len(results)))
	}
	c.JSON(http.StatusOK, results)
}

func (h *HTTPServer) count(c *gin.Context) {
	start := time.Now()
	coll, ok := h.collection(c)
	if !ok {
		return
	}
	body, err := readBody(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	opts, err := parseFindOptions(body)
	var n int64
	if err == nil {
		n, err = coll.Count(opts)
	}
	h.timed("count", start, err)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *HTTPServer) deleteMany(c *gin.Context) {
	start := time.Now()
	coll, ok := h.collection(c)
	if !ok {
		return
	}
	body, err := readBody(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	opts, err := parseFindOptions(body)
	var n int64
	if err == nil {
		n, err = coll.DeleteMany(opts)
	}
	h.timed("delete", start, err)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
