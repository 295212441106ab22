package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/core/model"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/driver"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/kgerr"
	"github.com/MinhAn15/Agentic-Personalized-LearningPath-sub000/internal/logger"
)

type Server struct {
	Ingestor *core.Ingestor
	Driver   driver.GraphDriver
	Log      *logger.Logger
}

func NewServer(ingestor *core.Ingestor, d driver.GraphDriver, log *logger.Logger) *Server {
	return &Server{Ingestor: ingestor, Driver: d, Log: log.With("component", "server")}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/ingest", s.Ingest)
	r.GET("/health", s.Health)

	return r
}

// Ingest accepts one extraction batch. ?force=true reprocesses a batch whose
// fingerprint is already recorded.
func (s *Server) Ingest(c *gin.Context) {
	var batch model.Batch
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	force := c.Query("force") == "true"

	report, err := s.Ingestor.ProcessBatch(c.Request.Context(), batch, force)
	if err != nil {
		s.Log.Error("batch ingestion failed", "batch_id", batch.BatchID, "error", err)
		switch {
		case kgerr.IsFatal(err):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case kgerr.IsRetryable(err):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	status := http.StatusOK
	if report.Status == model.BatchPartial {
		// Partial success is a real result, not an error; 207 signals that
		// the report body needs reading.
		status = http.StatusMultiStatus
	}
	c.JSON(status, report)
}

func (s *Server) Health(c *gin.Context) {
	if _, err := s.Driver.ExecuteQuery(c.Request.Context(), driver.PingQuery, nil); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
