package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sony/gobreaker"
	"github.com/soundprediction/minigraph/pkg/driver"
	"github.com/soundprediction/minigraph/pkg/records"
	"github.com/soundprediction/minigraph/pkg/server/dto"
)

func init() {
	// Record ids must reach the database as integers, not float64.
	binding.EnableDecoderUseNumber = true
}

// GraphHandler exposes the driver operations over HTTP
type GraphHandler struct {
	db     driver.Database
	logger *slog.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(db driver.Database, logger *slog.Logger) *GraphHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphHandler{db: db, logger: logger}
}

// Register mounts the graph routes on group.
func (h *GraphHandler) Register(group *gin.RouterGroup) {
	group.POST("/query/read", h.ReadQuery)
	group.POST("/query/write", h.WriteQuery)

	group.POST("/nodes", h.WriteNodes)
	group.POST("/edges", h.WriteEdges)
	group.POST("/attributes", h.SetNodeAttr)
	group.POST("/indexes", h.SetIndex)
	group.POST("/constraints", h.SetConstraint)
	group.POST("/degree", h.SetDegree)

	labels := group.Group("/labels")
	{
		labels.POST("", h.UpdateLabels)
		labels.DELETE("/:label", h.RemoveNodeLabel)
		labels.GET("/:label/exists", h.LabelExists)
		labels.GET("/:label/count", h.NodeCount)
		labels.GET("/:label/attributes/:attr/exists", h.AttrExists)
		labels.GET("/:label/attributes/:attr/range", h.AttrRange)
		labels.DELETE("/:label/attributes/:attr", h.RemoveNodeAttr)
	}

	rels := group.Group("/relationships")
	{
		rels.DELETE("/:type", h.WipeRelationships)
		rels.POST("/:type/dedupe", h.WipeDuplicateRelationships)
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error(), Code: http.StatusBadRequest})
}

// fail maps driver errors to status codes.
func (h *GraphHandler) fail(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "database_error"
	switch {
	case errors.Is(err, driver.ErrInvalidIdentifier),
		errors.Is(err, driver.ErrInvalidDuplicatePolicy),
		errors.Is(err, driver.ErrInvalidOrientation):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		status, code = http.StatusServiceUnavailable, "database_unavailable"
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), "Request failed", "route", c.FullPath(), "error", err)
	}
	c.JSON(status, dto.ErrorResponse{Error: code, Message: err.Error(), Code: status})
}

type validator interface {
	Validate() error
}

// bind decodes and validates the request body, writing a 400 on failure.
func bind(c *gin.Context, req validator) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, err)
		return false
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err)
		return false
	}
	return true
}

func normalizeRecords(recs []map[string]any) {
	for _, r := range recs {
		records.Normalize(r)
	}
}

func normalizeParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	return records.Normalize(params).(map[string]any)
}

func rowsResponse(rows []driver.Row) dto.RowsResponse {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return dto.RowsResponse{Rows: out, Count: len(out)}
}

// ReadQuery handles POST /query/read
func (h *GraphHandler) ReadQuery(c *gin.Context) {
	var req dto.QueryRequest
	if !bind(c, &req) {
		return
	}
	rows, err := h.db.Read(c.Request.Context(), req.Query, normalizeParams(req.Params))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rowsResponse(rows))
}

// WriteQuery handles POST /query/write
func (h *GraphHandler) WriteQuery(c *gin.Context) {
	var req dto.QueryRequest
	if !bind(c, &req) {
		return
	}
	rows, err := h.db.Write(c.Request.Context(), req.Query, normalizeParams(req.Params))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rowsResponse(rows))
}

// WriteNodes handles POST /nodes
func (h *GraphHandler) WriteNodes(c *gin.Context) {
	var req dto.WriteNodesRequest
	if !bind(c, &req) {
		return
	}
	normalizeRecords(req.Nodes)

	idProperty := req.IDProperty
	if idProperty == "" {
		idProperty = "id"
	}
	opts := &driver.NodeWriteOptions{IDKey: req.IDKey, Update: req.Update, ChunkSize: req.ChunkSize}
	if req.Attributes != nil {
		opts.Attributes = *req.Attributes
		if opts.Attributes == nil {
			opts.Attributes = []string{}
		}
	}

	if err := h.db.WriteNodes(c.Request.Context(), req.Nodes, req.Label, idProperty, opts); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.Result{Success: true, Data: gin.H{"written": len(req.Nodes)}})
}

// WriteEdges handles POST /edges
func (h *GraphHandler) WriteEdges(c *gin.Context) {
	var req dto.WriteEdgesRequest
	if !bind(c, &req) {
		return
	}
	normalizeRecords(req.Edges)

	opts := &driver.EdgeWriteOptions{
		SourceIDProperty: req.SourceIDProperty,
		TargetIDProperty: req.TargetIDProperty,
		Attributes:       req.Attributes,
		ChunkSize:        req.ChunkSize,
		OnDuplicate:      driver.OnDuplicate(req.OnDuplicate),
	}
	if err := h.db.WriteEdges(c.Request.Context(), req.Edges, req.SourceLabel, req.EdgeLabel, req.TargetLabel, opts); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.Result{Success: true, Data: gin.H{"written": len(req.Edges)}})
}

// UpdateLabels handles POST /labels
func (h *GraphHandler) UpdateLabels(c *gin.Context) {
	var req dto.UpdateLabelsRequest
	if !bind(c, &req) {
		return
	}
	ids := req.Records()
	normalizeRecords(ids)
	if err := h.db.UpdateLabels(c.Request.Context(), ids, req.MatchLabels, req.NewLabels, req.ChunkSize); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.Result{Success: true, Data: gin.H{"updated": len(ids)}})
}

// SetNodeAttr handles POST /attributes
func (h *GraphHandler) SetNodeAttr(c *gin.Context) {
	var req dto.SetAttrRequest
	if !bind(c, &req) {
		return
	}
	normalizeRecords(req.Rows)
	idProperty := req.IDProperty
	if idProperty == "" {
		idProperty = "id"
	}
	rows, err := h.db.SetNodeAttr(c.Request.Context(), req.Rows, req.Label, idProperty, req.Attr)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rowsResponse(rows))
}

// SetIndex handles POST /indexes
func (h *GraphHandler) SetIndex(c *gin.Context) {
	var req dto.IndexRequest
	if !bind(c, &req) {
		return
	}
	if err := h.db.SetIndex(c.Request.Context(), req.Label, req.Property); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.Result{Success: true})
}

// SetConstraint handles POST /constraints
func (h *GraphHandler) SetConstraint(c *gin.Context) {
	var req dto.IndexRequest
	if !bind(c, &req) {
		return
	}
	if req.Property == "" {
		badRequest(c, dto.ErrEmptyProperty)
		return
	}
	rows, err := h.db.SetConstraint(c.Request.Context(), req.Label, req.Property)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rowsResponse(rows))
}

// SetDegree handles POST /degree
func (h *GraphHandler) SetDegree(c *gin.Context) {
	var req dto.DegreeRequest
	if !bind(c, &req) {
		return
	}
	n, err := h.db.SetDegree(c.Request.Context(), req.Label, &driver.DegreeOptions{
		RelLabel:    req.RelLabel,
		TargetLabel: req.TargetLabel,
		Where:       req.Where,
		SetProperty: req.SetProperty,
		Orientation: driver.Orientation(req.Orientation),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CountResponse{Count: n})
}

// RemoveNodeLabel handles DELETE /labels/:label
func (h *GraphHandler) RemoveNodeLabel(c *gin.Context) {
	if err := h.db.RemoveNodeLabel(c.Request.Context(), c.Param("label")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.Result{Success: true})
}

// LabelExists handles GET /labels/:label/exists
func (h *GraphHandler) LabelExists(c *gin.Context) {
	ok, err := h.db.LabelExists(c.Request.Context(), c.Param("label"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ExistsResponse{Exists: ok})
}

// NodeCount handles GET /labels/:label/count?where=
func (h *GraphHandler) NodeCount(c *gin.Context) {
	n, err := h.db.NodeCount(c.Request.Context(), c.Param("label"), c.Query("where"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CountResponse{Count: n})
}

// AttrExists handles GET /labels/:label/attributes/:attr/exists?edge=&limit=
func (h *GraphHandler) AttrExists(c *gin.Context) {
	edge, _ := strconv.ParseBool(c.DefaultQuery("edge", "false"))
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		badRequest(c, errors.New("limit must be an integer"))
		return
	}
	ok, err := h.db.AttrExists(c.Request.Context(), c.Param("label"), c.Param("attr"), edge, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ExistsResponse{Exists: ok})
}

// AttrRange handles GET /labels/:label/attributes/:attr/range?where=
func (h *GraphHandler) AttrRange(c *gin.Context) {
	ctx := c.Request.Context()
	label, attr, where := c.Param("label"), c.Param("attr"), c.Query("where")

	lo, err := h.db.AttrMinimum(ctx, label, attr, where)
	if err != nil {
		h.fail(c, err)
		return
	}
	hi, err := h.db.AttrMaximum(ctx, label, attr, where)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RangeResponse{Min: lo, Max: hi})
}

// RemoveNodeAttr handles DELETE /labels/:label/attributes/:attr
func (h *GraphHandler) RemoveNodeAttr(c *gin.Context) {
	n, err := h.db.RemoveNodeAttr(c.Request.Context(), c.Param("label"), c.Param("attr"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CountResponse{Count: n})
}

// WipeRelationships handles DELETE /relationships/:type
func (h *GraphHandler) WipeRelationships(c *gin.Context) {
	if err := h.db.WipeRelationships(c.Request.Context(), c.Param("type")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.Result{Success: true})
}

// WipeDuplicateRelationships handles POST /relationships/:type/dedupe
func (h *GraphHandler) WipeDuplicateRelationships(c *gin.Context) {
	var req dto.DuplicatesRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	removed, err := h.db.WipeDuplicateRelationships(c.Request.Context(), c.Param("type"), &driver.DuplicateOptions{
		SourceLabel:      req.SourceLabel,
		SourceProperties: normalizeParams(req.SourceProperties),
		BatchSize:        req.BatchSize,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CountResponse{Count: removed})
}
