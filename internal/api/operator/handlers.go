package operator

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ringstore/internal/repair"
	"ringstore/internal/token"
)

// sessionView is the JSON projection of a repair.Session's externally
// visible state.
type sessionView struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

func newSessionView(id string, s *repair.Session) sessionView {
	state, err := s.State()
	v := sessionView{ID: id, State: state.String()}
	if err != nil {
		v.Error = err.Error()
	}
	return v
}

// createSessionRequest is the POST /sessions body. Range is given as
// raw lower/upper token bytes, hex-free — callers that need hex framing
// do it at their own transport boundary, the way wire's own codecs do.
type createSessionRequest struct {
	ID             string   `json:"id"` // minted if omitted
	Keyspace       string   `json:"keyspace" binding:"required"`
	Tables         []string `json:"tables" binding:"required"`
	Lower          []byte   `json:"lower" binding:"required"`
	Upper          []byte   `json:"upper" binding:"required"`
	Endpoints      []string `json:"endpoints"` // empty is valid: a session over no endpoints completes immediately
	Sequential     bool     `json:"sequential"`
	GCGraceSeconds int64    `json:"gc_grace_seconds"`
	MaxTreeDepth   int      `json:"max_tree_depth"`
}

// createSession starts a repair session over the requested table set
// and range, registering it for later status/terminate calls.
func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	maxDepth := req.MaxTreeDepth
	if maxDepth <= 0 {
		maxDepth = 15
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	session, err := s.sessions.Create(ctx, CreateSessionParams{
		ID:             req.ID,
		Keyspace:       req.Keyspace,
		Tables:         req.Tables,
		Range:          token.NewRange(token.Token(req.Lower), token.Token(req.Upper)),
		Endpoints:      req.Endpoints,
		Sequential:     req.Sequential,
		GCGraceSeconds: req.GCGraceSeconds,
		MaxTreeDepth:   maxDepth,
	})
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, newSessionView(session.ID, session))
}

// getSession reports a repair session's current state.
func (s *Server) getSession(c *gin.Context) {
	id := c.Param("id")
	session, ok := s.sessions.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "repair session not found: " + id})
		return
	}
	c.JSON(http.StatusOK, newSessionView(id, session))
}

// terminateSession forcibly fails a running repair session.
func (s *Server) terminateSession(c *gin.Context) {
	id := c.Param("id")
	if err := s.sessions.Terminate(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "terminating"})
}

// levelSummary is one row of the GET /manifest response.
type levelSummary struct {
	Level     int   `json:"level"`
	FileCount int   `json:"file_count"`
	SizeBytes int64 `json:"size_bytes"`
}

// getManifest reports per-level SST counts and sizes for ?table=<key>.
func (s *Server) getManifest(c *gin.Context) {
	handle, ok := s.tableHandle(c.Query("table"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown table: " + c.Query("table")})
		return
	}

	occupied := handle.Manifest.OccupiedLevels()
	levels := make([]levelSummary, 0, len(occupied))
	for _, i := range occupied {
		levels = append(levels, levelSummary{
			Level:     i,
			FileCount: handle.Manifest.LevelFileCount(i),
			SizeBytes: handle.Manifest.LevelSize(i),
		})
	}
	c.JSON(http.StatusOK, gin.H{"levels": levels})
}

// runCompaction runs candidate selection for ?table=<key> and schedules
// a compaction task if there is work. The Pool has no background
// candidate sweep of its own, so this route is what starts compaction.
func (s *Server) runCompaction(c *gin.Context) {
	handle, ok := s.tableHandle(c.Query("table"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown table: " + c.Query("table")})
		return
	}

	task := handle.Pool.Schedule()
	if task == nil {
		c.JSON(http.StatusOK, gin.H{"status": "nothing to compact"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task_id":      task.ID,
		"status":       task.Status,
		"target_level": task.TargetLevel,
		"inputs":       len(task.Inputs),
	})
}
