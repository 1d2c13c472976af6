package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"audionote-backend/config"
	"audionote-backend/handler"
	"audionote-backend/middleware"
)

func NewRouter(deps handler.ServiceDependencies, auth config.Auth, requestTimeout time.Duration, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestLogger(logger),
		cors.New(cors.Config{
			AllowOriginFunc:  func(origin string) bool { return true },
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		middleware.Deadline(requestTimeout),
	)
	addHealth(r)

	h := handler.NewHTTPHandler(deps)
	r.GET("/test", h.Test)

	protected := r.Group("")
	protected.Use(middleware.Auth([]byte(auth.JWTSecret), auth.Issuer))
	{
		protected.POST("/uploadAudio", h.UploadAudio)
		protected.POST("/uploadAudioChunk", h.UploadAudioChunk)
		protected.POST("/finalizeChunkedUpload", h.FinalizeChunkedUpload)
		protected.POST("/processAudio", h.ProcessAudio)

		protected.GET("/recordings", h.ListRecordings)
		protected.GET("/recordings/:id", h.GetRecording)
		protected.DELETE("/recordings/:id", h.DeleteRecording)
		protected.DELETE("/deleteAllRecordings", h.DeleteAllRecordings)
	}

	return r
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}
