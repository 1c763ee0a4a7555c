package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "prediction-tracker/docs"
)

func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/creators", func(r chi.Router) {
		r.Post("/", h.RegisterCreator)
		r.Get("/", h.ListCreators)
		r.Get("/{id}", h.GetCreator)
		r.Get("/{id}/predictions", h.ListPredictions)
		r.Get("/{id}/pipeline", h.GetPipelineStatus)
		r.Post("/{id}/pipeline", h.StartPipeline)
		r.Post("/{id}/pipeline/restart-analysis", h.RestartAnalysis)
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}
