package server

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(recovery(s.logger))

	r.NotFound(s.notFound)
	r.MethodNotAllowed(s.methodNotAllowed)

	r.Get("/", s.root)
	r.Post("/predict", s.predict)
	r.Get("/dataset/summary", s.datasetSummary)
	r.Route("/models", func(r chi.Router) {
		r.Get("/", s.listModels)
		r.Get("/{model_id}", s.modelMetrics)
		r.Get("/{model_id}/importance.png", s.importanceChart)
	})

	s.router = r
}
