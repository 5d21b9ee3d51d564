package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"timesheet-bot/internal/catalog"
	"timesheet-bot/internal/service"
)

type Server struct {
	workflow    *service.Workflow
	irrigations *service.IrrigationService
	catalog     *catalog.Catalog
	jwtSecret   string
	logger      *logrus.Logger
}

func NewServer(workflow *service.Workflow, irrigations *service.IrrigationService, cat *catalog.Catalog, jwtSecret string) *Server {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return &Server{
		workflow:    workflow,
		irrigations: irrigations,
		catalog:     cat,
		jwtSecret:   jwtSecret,
		logger:      logger,
	}
}

func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(RequestID)
	router.Use(Logger(s.logger))
	router.Use(chimiddleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Route("/api", func(r chi.Router) {
		r.Use(Auth(s.jwtSecret))

		r.Get("/periods", s.handlePeriods)
		r.Get("/matrix", s.handleMatrix)
		r.Get("/matrix.xlsx", s.handleMatrixXLSX)
		r.Get("/matrix.pdf", s.handleMatrixPDF)
		r.Get("/missing", s.handleMissing)
		r.Get("/catalog", s.handleCatalog)
		r.Get("/riegos", s.handleListIrrigations)

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin(s.jwtSecret))
			r.Post("/refresh", s.handleRefresh)
			r.Post("/riegos", s.handleCreateIrrigation)
			r.Put("/riegos/{id}", s.handleUpdateIrrigation)
			r.Delete("/riegos/{id}", s.handleDeleteIrrigation)
		})
	})

	return router
}
