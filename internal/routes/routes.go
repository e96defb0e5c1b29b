package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/martforge/martforge-api/internal/authz"
	"github.com/martforge/martforge-api/internal/handlers"
	"github.com/martforge/martforge-api/internal/models"
)

// NewRouter sets up the API routes. Everything under /api except signup and
// login requires a valid token; mutating ETL endpoints require the admin
// role on top.
func NewRouter(
	auth *handlers.AuthHandler,
	etl *handlers.ETLHandler,
	orgs *handlers.OrganizationHandler,
	notifications *handlers.NotificationHandler,
	health *handlers.HealthHandler,
) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", health.Check).Methods(http.MethodGet)

	// Public auth endpoints
	router.HandleFunc("/api/signup", auth.SignUp).Methods(http.MethodPost)
	router.HandleFunc("/api/login", auth.Login).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.JWTMiddleware)

	admin := func(h http.HandlerFunc) http.Handler {
		return authz.RequireRoleHandler(models.RoleAdmin, h)
	}

	api.Handle("/etl/run", admin(etl.RunAll)).Methods(http.MethodPost)
	api.Handle("/etl/jobs/{job}/run", admin(etl.RunJob)).Methods(http.MethodPost)
	api.HandleFunc("/etl/jobs", etl.ListJobs).Methods(http.MethodGet)
	api.HandleFunc("/etl/runs", etl.ListRuns).Methods(http.MethodGet)
	api.HandleFunc("/etl/runs/stats", etl.RunStatsHandler).Methods(http.MethodGet)

	api.HandleFunc("/organizations", orgs.List).Methods(http.MethodGet)
	api.HandleFunc("/organizations/{id}", orgs.Get).Methods(http.MethodGet)

	api.HandleFunc("/notifications", notifications.ListRecent).Methods(http.MethodGet)
	api.Handle("/notifications/{id}/read", admin(notifications.MarkRead)).Methods(http.MethodPost)

	return router
}
