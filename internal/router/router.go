package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Abdiitb/Namma-Chennai-sub001/internal/config"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/handlers"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/middleware"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/models"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/repository/postgres"
	"github.com/Abdiitb/Namma-Chennai-sub001/internal/service"
	syncpkg "github.com/Abdiitb/Namma-Chennai-sub001/internal/sync"
)

func New(log zerolog.Logger, db *pgxpool.Pool, cfg config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Origin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Total-Count"},
		AllowCredentials: true,
	}))
	r.Use(httprate.LimitByIP(200, time.Minute))

	r.Get("/healthz", handlers.Health())

	ticketRepo := postgres.NewTicketRepo(db)
	userRepo := postgres.NewUserRepo(db)
	mutationLog := postgres.NewMutationLog(db)

	ticketSvc := service.NewTicketService(ticketRepo, userRepo)
	authSvc := service.NewAuthService(userRepo, cfg.SessionSecret)
	applier := syncpkg.NewApplier(ticketSvc, mutationLog, log)

	ah := handlers.NewAuthHTTP(authSvc, userRepo)
	th := handlers.NewTicketHTTP(ticketSvc)
	uh := handlers.NewUserHTTP(authSvc, userRepo)
	sh := handlers.NewSyncHTTP(applier, ticketSvc)

	staff := string(models.RoleStaff)
	supervisor := string(models.RoleSupervisor)
	admin := string(models.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.WithAuth(log, cfg))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", ah.Register())
			r.Post("/login", ah.Login())
			r.With(middleware.RequireAuth).Get("/me", ah.Me())
		})

		r.Route("/tickets", func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.With(middleware.RequireRoles(staff, supervisor, admin)).Get("/", th.List())
			r.Post("/", th.Create())
			r.Get("/mine", th.Mine())
			r.With(middleware.RequireRoles(staff, supervisor, admin)).Get("/assigned", th.Assigned())
			r.With(middleware.RequireRoles(supervisor, admin)).Get("/queue", th.Queue())

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", th.Detail())
				r.With(middleware.RequireRoles(staff, supervisor, admin)).Post("/assign", th.Assign())
				r.Post("/transition", th.Transition())
				r.Post("/comments", th.AddComment())
				r.Post("/attachments", th.AddAttachment())
				r.Post("/rating", th.Rate())
			})
		})

		r.Route("/sync", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Post("/mutations", sh.ApplyMutations())
			r.Get("/changes", sh.Changes())
		})

		r.Route("/users/{id}", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.With(middleware.RequireRoles(admin)).Put("/provision", uh.Provision())
			r.With(middleware.RequireSelfOrRoles(supervisor, admin)).Get("/profile", uh.StaffProfile())
		})
	})

	return r
}
