package livehttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"daybot/internal/agent"
	"daybot/internal/executor/paper"
	"daybot/internal/hitl"
	"daybot/internal/logger"
	"daybot/internal/store"

	"github.com/gin-gonic/gin"
)

// Router exposes the ledger views, HITL queue and operational controls.
type Router struct {
	Controls Controls
}

func NewRouter(ctrl Controls) *Router {
	return &Router{Controls: ctrl}
}

// Register mounts the /api/live routes on group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/ledger", r.handleLedger)
	group.GET("/pnl", r.handlePnL)
	group.GET("/positions", r.handlePositions)
	group.GET("/orders", r.handleOrders)
	group.GET("/decisions", r.handleDecisions)
	group.GET("/proposals", r.handleProposals)

	group.GET("/hitl/pending", r.handlePending)
	group.POST("/hitl/next", r.handleApproveNext)
	group.POST("/hitl/decisions/:id/approve", r.handleApprove)
	group.POST("/hitl/decisions/:id/reject", r.handleReject)

	group.POST("/controls/safe-mode", r.handleSafeMode)
	group.POST("/controls/reset-day", r.handleResetDay)
	group.POST("/controls/flatten", r.handleFlatten)
}

func (r *Router) handleLedger(c *gin.Context) {
	l, err := r.Controls.Ledger(c.Request.Context())
	if err != nil {
		writeError(c, "ledger", err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (r *Router) handlePnL(c *gin.Context) {
	sum, err := r.Controls.PnL(c.Request.Context())
	if err != nil {
		writeError(c, "pnl", err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (r *Router) handlePositions(c *gin.Context) {
	positions, err := r.Controls.Positions(c.Request.Context())
	if err != nil {
		writeError(c, "positions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions, "count": len(positions)})
}

func (r *Router) handleOrders(c *gin.Context) {
	orders, err := r.Controls.RecentOrders(c.Request.Context(), queryLimit(c))
	if err != nil {
		writeError(c, "orders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (r *Router) handleDecisions(c *gin.Context) {
	decisions, err := r.Controls.RecentDecisions(c.Request.Context(), queryLimit(c))
	if err != nil {
		writeError(c, "decisions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": decisions})
}

func (r *Router) handleProposals(c *gin.Context) {
	proposals, err := r.Controls.RecentProposals(c.Request.Context(), queryLimit(c))
	if err != nil {
		writeError(c, "proposals", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

func (r *Router) handlePending(c *gin.Context) {
	items, err := r.Controls.ListPending(c.Request.Context())
	if err != nil {
		writeError(c, "hitl pending", err)
		return
	}
	out := make([]hitlResponse, 0, len(items))
	for _, it := range items {
		out = append(out, hitlResponse{Decision: it.Decision, Proposal: it.Proposal})
	}
	c.JSON(http.StatusOK, gin.H{"pending": out, "count": len(out)})
}

func (r *Router) handleApprove(c *gin.Context) {
	id, ok := decisionID(c)
	if !ok {
		return
	}
	logger.Infof("[api] hitl approve ip=%s decision=%d", c.ClientIP(), id)
	res, err := r.Controls.Approve(c.Request.Context(), id)
	if err != nil {
		writeError(c, "hitl approve", err)
		return
	}
	c.JSON(http.StatusOK, toHITLResponse(res))
}

func (r *Router) handleReject(c *gin.Context) {
	id, ok := decisionID(c)
	if !ok {
		return
	}
	logger.Infof("[api] hitl reject ip=%s decision=%d", c.ClientIP(), id)
	res, err := r.Controls.Reject(c.Request.Context(), id)
	if err != nil {
		writeError(c, "hitl reject", err)
		return
	}
	c.JSON(http.StatusOK, toHITLResponse(res))
}

func (r *Router) handleApproveNext(c *gin.Context) {
	logger.Infof("[api] hitl approve next ip=%s", c.ClientIP())
	res, err := r.Controls.ApproveNext(c.Request.Context())
	if err != nil {
		writeError(c, "hitl approve next", err)
		return
	}
	c.JSON(http.StatusOK, toHITLResponse(res))
}

func (r *Router) handleSafeMode(c *gin.Context) {
	req := bindReason(c)
	logger.Warnf("[api] safe mode requested ip=%s reason=%q", c.ClientIP(), req.Reason)
	l, err := r.Controls.TriggerSafeMode(c.Request.Context(), req.Reason)
	if err != nil {
		writeError(c, "safe mode", err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (r *Router) handleResetDay(c *gin.Context) {
	logger.Warnf("[api] ledger reset requested ip=%s", c.ClientIP())
	l, err := r.Controls.ResetDay(c.Request.Context())
	if err != nil {
		writeError(c, "reset day", err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (r *Router) handleFlatten(c *gin.Context) {
	req := bindReason(c)
	logger.Warnf("[api] flatten requested ip=%s reason=%q", c.ClientIP(), req.Reason)
	exits, err := r.Controls.FlattenAll(c.Request.Context(), req.Reason)
	if err != nil {
		writeError(c, "flatten", err)
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "manual"
	}
	c.JSON(http.StatusOK, flattenResponse{Reason: reason, Count: len(exits), Exits: exits})
}

// bindReason accepts a JSON body, a form field or an empty body.
func bindReason(c *gin.Context) reasonRequest {
	var req reasonRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBind(&req); err != nil {
			logger.Warnf("[api] bind reason failed ip=%s err=%v", c.ClientIP(), err)
		}
	}
	if req.Reason == "" {
		req.Reason = c.Query("reason")
	}
	req.Reason = strings.TrimSpace(req.Reason)
	return req
}

func decisionID(c *gin.Context) (int64, bool) {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	if id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid decision id"})
		return 0, false
	}
	return id, true
}

func queryLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	return limit
}

func writeError(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, agent.ErrNoPending):
		status = http.StatusNotFound
	case errors.Is(err, hitl.ErrNotPending):
		status = http.StatusConflict
	case errors.Is(err, paper.ErrNoPrices):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logger.Errorf("[api] %s failed ip=%s err=%v", op, c.ClientIP(), err)
	} else {
		logger.Warnf("[api] %s ip=%s err=%v", op, c.ClientIP(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
