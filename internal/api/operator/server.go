// Package operator implements the gin-based admin HTTP surface spec.md
// §7 describes: session lifecycle, manifest inspection, and manual
// compaction triggers, gated by internal/auth's bearer-JWT middleware.
// Grounded on the teacher's cmd/http-wrapper's
// NewWrapper/setupRoutes/gin.H{...} idiom, generalized from ingestion
// endpoints to the leveled-compaction/anti-entropy admin surface.
package operator

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ringstore/internal/auth"
	"ringstore/internal/manifest"
)

// TableHandle pairs one table's Manifest with its compaction Pool —
// the two collaborators the operator surface actually drives per
// table.
type TableHandle struct {
	Manifest *manifest.Manifest
	Pool     *manifest.Pool
}

// Server wires the operator HTTP surface over a fixed set of tables,
// an auth middleware, and the repair session registry.
type Server struct {
	auth     *auth.AuthMiddleware
	tables   map[string]TableHandle
	sessions *SessionRegistry
}

// NewServer builds a Server. tables is keyed by common.TableID.String()
// ("<keyspace>.<table>").
func NewServer(authMiddleware *auth.AuthMiddleware, tables map[string]TableHandle, sessions *SessionRegistry) *Server {
	return &Server{auth: authMiddleware, tables: tables, sessions: sessions}
}

// SetupRoutes builds the gin.Engine for this Server.
func (s *Server) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	r.GET("/health", s.health)

	protected := r.Group("/")
	protected.Use(s.requireAuth)
	{
		protected.POST("/sessions", s.createSession)
		protected.GET("/sessions/:id", s.getSession)
		protected.POST("/sessions/:id/terminate", s.terminateSession)
		protected.GET("/manifest", s.getManifest)
		protected.POST("/compact", s.runCompaction)
	}

	return r
}

// requireAuth extracts and validates a bearer token and stores its
// claims on the context before letting the request reach the handler.
// It does not check the claims' permissions against the route: any
// valid token reaches every protected handler.
func (s *Server) requireAuth(c *gin.Context) {
	claims, err := s.auth.ExtractAndValidateToken(c.Request.Context(), c.GetHeader("Authorization"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.Set("claims", claims)
	c.Next()
}

// health reports liveness; unauthenticated, matching the teacher's own
// health check route.
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "ringstore-operator",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) tableHandle(key string) (TableHandle, bool) {
	handle, ok := s.tables[key]
	return handle, ok
}
