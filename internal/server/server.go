package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/weavelabs/weave/internal/config"
	"github.com/weavelabs/weave/internal/core"
	"github.com/weavelabs/weave/internal/core/discover"
	"github.com/weavelabs/weave/internal/core/model"
	"github.com/weavelabs/weave/internal/core/resolve"
	"github.com/weavelabs/weave/internal/core/temporal"
	"github.com/weavelabs/weave/internal/store"
)

type Server struct {
	Engine *core.Engine
	log    *zap.Logger
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	st, err := store.Open(ctx, cfg.Storage.URI, cfg.Storage.User, cfg.Storage.Password, cfg.Storage.DataDir, log)
	if err != nil {
		return nil, err
	}

	resolver := resolve.NewResolver(buildResolverConfig(cfg.Resolver, log), log)
	discovery := discover.NewEngine(buildDiscoveryConfig(cfg.Discovery), log)
	tracker := temporal.NewTracker(cfg.Temporal.DecayRate, log)

	if vs, ok := st.(store.VersionStore); ok {
		versions, err := vs.LoadVersions(ctx)
		if err != nil {
			log.Warn("failed to load version history", zap.Error(err))
		} else {
			tracker.Load(versions)
		}
	}

	engine := core.NewEngine(st, resolver, discovery, tracker, log)
	return &Server{Engine: engine, log: log}, nil
}

// buildResolverConfig maps config strings onto the resolver's typed enums.
// Unknown names fall back to the defaults with a warning.
func buildResolverConfig(cfg config.ResolverConfig, log *zap.Logger) resolve.Config {
	out := resolve.DefaultConfig()
	if cfg.ConfidenceThreshold > 0 {
		out.ConfidenceThreshold = cfg.ConfidenceThreshold
	}
	out.ScalarKeepBoth = cfg.ScalarKeepBoth

	for typeName, strategyName := range cfg.Strategies {
		conflictType, err := model.ParseConflictType(typeName)
		if err != nil {
			log.Warn("ignoring strategy for unknown conflict type", zap.String("type", typeName))
			continue
		}
		strategy, err := resolve.ParseStrategy(strategyName)
		if err != nil {
			log.Warn("ignoring unknown strategy, keeping default",
				zap.String("type", typeName), zap.String("strategy", strategyName))
			continue
		}
		out.Strategies[conflictType] = strategy
	}

	if len(cfg.Contradictions) > 0 {
		out.ContradictionPairs = nil
		for _, pair := range cfg.Contradictions {
			if len(pair) != 2 {
				log.Warn("ignoring malformed contradiction pair", zap.Strings("pair", pair))
				continue
			}
			out.ContradictionPairs = append(out.ContradictionPairs, [2]string{pair[0], pair[1]})
		}
	}
	return out
}

func buildDiscoveryConfig(cfg config.DiscoveryConfig) discover.Config {
	out := discover.DefaultConfig()
	if cfg.MaxConnections > 0 {
		out.MaxConnections = cfg.MaxConnections
	}
	if len(cfg.TransitiveTypes) > 0 {
		out.TransitiveTypes = cfg.TransitiveTypes
	}
	if cfg.CommonIntermediaryConfidence > 0 {
		out.Confidences.CommonIntermediary = cfg.CommonIntermediaryConfidence
	}
	if cfg.SimilarRelationshipConfidence > 0 {
		out.Confidences.SimilarRelationship = cfg.SimilarRelationshipConfidence
	}
	if cfg.SharedPropertyConfidence > 0 {
		out.Confidences.SharedProperty = cfg.SharedPropertyConfidence
	}
	if cfg.TransitiveRelationConfidence > 0 {
		out.Confidences.TransitiveRelation = cfg.TransitiveRelationConfidence
	}
	return out
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/integrate", s.Integrate)
	r.POST("/query", s.Query)
	r.GET("/entities/:id/history", s.History)
	r.GET("/entities/:id/evolution", s.Evolution)
	r.GET("/relationships/:id/history", s.History)
	r.GET("/state", s.StateAt)
	r.GET("/statistics", s.Statistics)
	r.GET("/gaps", s.Gaps)
	r.POST("/clear", s.Clear)

	return r
}

type IntegrateRequest struct {
	Entities      []model.ExtractedEntity       `json:"entities"`
	Relationships []model.ExtractedRelationship `json:"relationships"`
}

func (s *Server) Integrate(c *gin.Context) {
	var req IntegrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	result := s.Engine.Integrate(c.Request.Context(), req.Entities, req.Relationships)
	c.JSON(http.StatusOK, result)
}

func (s *Server) Query(c *gin.Context) {
	var q core.Query
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	result, err := s.Engine.Query(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) History(c *gin.Context) {
	versions := s.Engine.EntityHistory(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"versions": versions, "count": len(versions)})
}

func (s *Server) Evolution(c *gin.Context) {
	evolution, err := s.Engine.AnalyzeEvolution(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, evolution)
}

func (s *Server) StateAt(c *gin.Context) {
	at := c.Query("at")
	ts, err := time.Parse(time.RFC3339, at)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'at' must be RFC3339"})
		return
	}
	c.JSON(http.StatusOK, s.Engine.StateAt(ts))
}

func (s *Server) Statistics(c *gin.Context) {
	stats, err := s.Engine.Statistics(c.Request.Context())
	if err != nil {
		s.log.Error("failed to compute statistics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) Gaps(c *gin.Context) {
	report, err := s.Engine.KnowledgeGaps(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

type ClearRequest struct {
	Confirm bool `json:"confirm"`
}

func (s *Server) Clear(c *gin.Context) {
	var req ClearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := s.Engine.Clear(c.Request.Context(), req.Confirm); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
