package router

import (
	"database/sql"
	"net/http"

	"pagebuilder/config"
	handlers "pagebuilder/handler"
	"pagebuilder/internal/catalog"
	pageHandler "pagebuilder/internal/page"
	"pagebuilder/internal/page/repository"
	"pagebuilder/internal/page/service"
	"pagebuilder/middleware"
	"pagebuilder/pkg/metrics"
	"pagebuilder/socket"
)

type Deps struct {
	DB      *sql.DB
	Repo    *repository.PageRepository
	Hub     *socket.Hub
	Catalog *catalog.Catalog
	Config  config.Config
}

func Setup(d Deps) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.AuthMiddleware(d.Config.JWTSecret)

	// WebSocket
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(middleware.UserIDKey).(string)
		socket.ServeWs(d.Hub, w, r, userID)
	})
	mux.Handle("/ws", auth(wsHandler))

	// REST API
	pageService := service.NewPageService(d.Repo, d.Hub, d.Catalog, d.Config.PublicURL)
	pages := pageHandler.NewPageHandler(pageService)
	api := func(h http.HandlerFunc) http.Handler {
		return middleware.BodyLimit(d.Config.MaxBodyBytes)(auth(h))
	}

	mux.Handle("/api/pages", api(pages.GetPages))
	mux.Handle("/api/pages/create", api(pages.CreatePage))
	mux.Handle("/api/pages/get", api(pages.GetPage))
	mux.Handle("/api/pages/save", api(pages.SavePage))
	mux.Handle("/api/pages/delete", api(pages.DeletePage))
	mux.Handle("/api/pages/update", api(pages.UpdatePage))
	mux.Handle("/api/pages/invite", api(pages.AddCollaborator))
	mux.Handle("/api/pages/members", api(pages.GetPageMembers))
	mux.Handle("/api/pages/publish", api(pages.Publish))
	mux.Handle("/api/pages/unpublish", api(pages.Unpublish))
	mux.Handle("/api/pages/preview", api(pages.Preview))
	mux.Handle("/api/templates", api(pages.GetTemplates))

	// Public
	mux.Handle("/p/", handlers.NewPublicHandler(d.Repo))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := d.DB.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	return middleware.CORSMiddleware(d.Config.CORSOrigins)(mux)
}
