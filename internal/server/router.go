package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	mng "github.com/loykin/procmgr/internal/manager"
	"github.com/loykin/procmgr/internal/process"
)

// Router exposes the process manager over HTTP.
// Endpoints, relative to basePath:
//
//	GET    /processes               list statuses
//	POST   /processes               create (CreateRequest JSON)
//	GET    /processes/:id           single status
//	PUT    /processes/:id           partial update (UpdateRequest JSON)
//	DELETE /processes/:id           stop if running, then remove
//	POST   /processes/:id/start
//	POST   /processes/:id/stop
//	GET    /processes/:id/logs      query: lines=N (absent or negative: 100)
//	GET    /processes/:id/usage     CPU and memory sample of the running PID
//	GET    /processes/:id/history   query: limit=N (default 50)
//	GET    /status                  aggregate summary
//	GET    /version
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	mgr      *mng.Manager
	basePath string
	logger   *slog.Logger
	metrics  http.Handler
}

// Option customizes a Router.
type Option func(*Router)

// WithLogger sets the logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics mounts h at /metrics, outside basePath.
func WithMetrics(h http.Handler) Option {
	return func(r *Router) { r.metrics = h }
}

func NewRouter(mgr *mng.Manager, basePath string, opts ...Option) *Router {
	r := &Router{mgr: mgr, basePath: sanitizeBase(basePath), logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery(), r.requestLogger())
	if r.metrics != nil {
		g.GET("/metrics", gin.WrapH(r.metrics))
	}
	group := g.Group(r.basePath)
	group.GET("/processes", r.handleList)
	group.POST("/processes", r.handleCreate)
	group.GET("/processes/:id", r.handleGet)
	group.PUT("/processes/:id", r.handleUpdate)
	group.DELETE("/processes/:id", r.handleDelete)
	group.POST("/processes/:id/start", r.handleStart)
	group.POST("/processes/:id/stop", r.handleStop)
	group.GET("/processes/:id/logs", r.handleLogs)
	group.GET("/processes/:id/usage", r.handleUsage)
	group.GET("/processes/:id/history", r.handleHistory)
	group.GET("/status", r.handleStatus)
	group.GET("/version", r.handleVersion)
	return g
}

// NewServer builds an HTTP server for addr using this router. The caller
// runs ListenAndServe and Shutdown.
func NewServer(addr string, r *Router) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (r *Router) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		r.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) handleList(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.mgr.List())
}

func (r *Router) handleCreate(c *gin.Context) {
	var req process.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error(), Kind: "validation"})
		return
	}
	cfg, err := r.mgr.Create(req)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, cfg)
}

func (r *Router) handleGet(c *gin.Context) {
	st, err := r.mgr.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) handleUpdate(c *gin.Context) {
	var req process.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error(), Kind: "validation"})
		return
	}
	cfg, err := r.mgr.Update(c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cfg)
}

func (r *Router) handleDelete(c *gin.Context) {
	if err := r.mgr.Delete(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStart(c *gin.Context) {
	id := c.Param("id")
	if err := r.mgr.Start(id); err != nil {
		writeError(c, err)
		return
	}
	r.writeStatus(c, id)
}

func (r *Router) handleStop(c *gin.Context) {
	id := c.Param("id")
	if err := r.mgr.Stop(id); err != nil {
		writeError(c, err)
		return
	}
	r.writeStatus(c, id)
}

func (r *Router) writeStatus(c *gin.Context, id string) {
	st, err := r.mgr.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) handleLogs(c *gin.Context) {
	lines := mng.DefaultLogLines
	if raw := strings.TrimSpace(c.Query("lines")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "lines must be an integer", Kind: "validation"})
			return
		}
		// the manager maps negatives to the default
		lines = n
	}
	res, err := r.mgr.Logs(c.Param("id"), lines)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (r *Router) handleUsage(c *gin.Context) {
	u, err := r.mgr.Usage(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, u)
}

func (r *Router) handleHistory(c *gin.Context) {
	limit, err := intQuery(c, "limit", 0)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error(), Kind: "validation"})
		return
	}
	events, err := r.mgr.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, events)
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.mgr.Summary())
}

func (r *Router) handleVersion(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.mgr.Version())
}
