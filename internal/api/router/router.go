package router

import (
	"net/http"

	"github.com/dubsync/dubsync-be/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "dub-api-service",
		})
	})

	dubHandler := handler.NewDubHandler(deps)

	dub := r.Group("/dub")
	{
		jobs := dub.Group("/jobs")
		{
			// POST /dub/jobs - Submit a dub recording for analysis
			jobs.POST("", dubHandler.SubmitJob)

			// POST /dub/jobs/callback - Worker completion webhook
			jobs.POST("/callback", dubHandler.Callback)

			// GET /dub/jobs/:job_id - Get job state
			jobs.GET("/:job_id", dubHandler.GetJob)

			// GET /dub/jobs/:job_id/stream - Job state over SSE
			jobs.GET("/:job_id/stream", dubHandler.StreamJob)
		}

		// POST /dub/synthesize/:clip_id - Render the user's dubbed clip
		dub.POST("/synthesize/:clip_id", dubHandler.Synthesize)

		// GET /dub/files - Presigned blob retrieval
		dub.GET("/files", dubHandler.GetFile)
	}

	return r
}
