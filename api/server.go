package api

import (
	"fmt"

	"intercom-dvr/config"
	"intercom-dvr/database"
	"intercom-dvr/service"

	"github.com/gin-gonic/gin"
)

// Server exposes a read-only status API for the recorder.
type Server struct {
	config     config.Config
	db         database.Database
	controller *service.Controller
}

// NewServer creates the status API server.
func NewServer(cfg config.Config, db database.Database, controller *service.Controller) *Server {
	return &Server{
		config:     cfg,
		db:         db,
		controller: controller,
	}
}

// Start runs the HTTP server. It blocks.
func (s *Server) Start() {
	r := gin.Default()
	s.setupRoutes(r)
	portAddr := ":" + s.config.ServerPort
	fmt.Printf("Starting API server on %s\n", portAddr)
	r.Run(portAddr)
}

func (s *Server) setupRoutes(r *gin.Engine) {
	r.GET("/healthz", s.healthz)

	api := r.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.GET("/archives", s.listArchives)
	}
}
