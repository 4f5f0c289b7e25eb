package api

import (
	"fmt"
	"net/http"

	"github.com/garnizeh/talentflow/internal/config"
	"github.com/garnizeh/talentflow/internal/db"
	"github.com/garnizeh/talentflow/internal/metrics"
	"github.com/garnizeh/talentflow/internal/repository/sqlite"
	"github.com/garnizeh/talentflow/internal/service"
	"github.com/gorilla/mux"
)

// SetupRoutes builds the HTTP surface over conn. m may be nil to run
// without metrics; simOpts tune the transport simulation.
func SetupRoutes(cfg *config.Config, version, buildTime string, conn *db.DB, m *metrics.Manager, simOpts ...SimulatorOption) (*mux.Router, error) {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(MetricsMiddleware(m))

	// middleware registered with Use only runs for matched routes, so the
	// fallbacks carry CORS headers themselves
	methodNotAllowed := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, ErrorBody{Error: "method not allowed"}, http.StatusMethodNotAllowed)
	}))
	notFound := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, ErrorBody{Error: "no such route"}, http.StatusNotFound)
	}))
	r.MethodNotAllowedHandler = methodNotAllowed
	r.NotFoundHandler = notFound

	// Services
	store := sqlite.New(conn, logger)
	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithStrictChoices(cfg.Assessment.StrictChoices),
	}
	assessments, err := service.NewAssessments(store, opts...)
	if err != nil {
		return nil, fmt.Errorf("setup assessments: %w", err)
	}

	// Create handlers
	systemHandler := &SystemHandler{DB: conn.GetConn()}
	jobsHandler := NewJobsHandler(service.NewJobs(store, opts...), m)
	candidatesHandler := NewCandidatesHandler(service.NewCandidates(store, opts...), cfg.DefaultActor, m)
	assessmentsHandler := NewAssessmentsHandler(assessments, m)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods(http.MethodGet)
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods(http.MethodGet)
	if cfg.Metrics.Enabled && m != nil {
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	}

	// Simulated remote API
	sim := NewSimulator(cfg.Transport, append([]SimulatorOption{WithSimulatorMetrics(m)}, simOpts...)...)
	// preflights are answered by CORSMiddleware before the simulator sees them
	r.PathPrefix("/api/").Methods(http.MethodOptions).Handler(http.NotFoundHandler())
	apiR := r.PathPrefix("/api").Subrouter()
	apiR.MethodNotAllowedHandler = methodNotAllowed
	apiR.NotFoundHandler = notFound
	apiR.Use(sim.Middleware)

	apiR.HandleFunc("/jobs", jobsHandler.ListJobs).Methods(http.MethodGet)
	apiR.HandleFunc("/jobs", jobsHandler.CreateJob).Methods(http.MethodPost)
	apiR.HandleFunc("/jobs/{id}", jobsHandler.GetJob).Methods(http.MethodGet)
	apiR.HandleFunc("/jobs/{id}", jobsHandler.UpdateJob).Methods(http.MethodPatch)
	apiR.HandleFunc("/jobs/{id}/reorder", jobsHandler.ReorderJob).Methods(http.MethodPatch)

	apiR.HandleFunc("/candidates", candidatesHandler.ListCandidates).Methods(http.MethodGet)
	apiR.HandleFunc("/candidates", candidatesHandler.CreateCandidate).Methods(http.MethodPost)
	apiR.HandleFunc("/candidates/{id}", candidatesHandler.GetCandidate).Methods(http.MethodGet)
	apiR.HandleFunc("/candidates/{id}", candidatesHandler.UpdateCandidate).Methods(http.MethodPatch)
	apiR.HandleFunc("/candidates/{id}/timeline", candidatesHandler.Timeline).Methods(http.MethodGet)
	apiR.HandleFunc("/candidates/{id}/notes", candidatesHandler.AddNote).Methods(http.MethodPost)

	apiR.HandleFunc("/assessments/{jobId}", assessmentsHandler.GetAssessment).Methods(http.MethodGet)
	apiR.HandleFunc("/assessments/{jobId}", assessmentsHandler.PutAssessment).Methods(http.MethodPut)
	apiR.HandleFunc("/assessments/{jobId}/questions/{questionId}", assessmentsHandler.DeleteQuestion).Methods(http.MethodDelete)
	apiR.HandleFunc("/assessments/{jobId}/submit", assessmentsHandler.Submit).Methods(http.MethodPost)

	return r, nil
}
