// cmd/gateway/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"apgate/internal/analytics"
	"apgate/internal/content"
	"apgate/internal/session"
	"apgate/internal/store"
	"apgate/pkg/config"
	"apgate/pkg/db"
	"apgate/pkg/fireadmin"
	"apgate/pkg/logger"
	"apgate/pkg/middleware"
	"apgate/pkg/squidex"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	fb := fireadmin.MustInit(ctx, cfg, log)
	defer fb.Close()

	rdb := db.MustRedis(cfg, log)
	reg := squidex.NewRegistry(cfg, log)

	sessionSvc := session.NewService(fb.Auth, cfg.FirebaseWebAPIKey, log)
	docs := store.NewFirestoreStore(fb.Firestore)
	analyticsSvc := analytics.NewService(cfg.MeasurementID, cfg.AnalyticsAPISecret, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Logging(log))
	// Public service: allow cross-origin for the web frontends.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			origin := req.Header.Get("Origin")
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400")
			if req.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Use(middleware.Tracing())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	authLimit := middleware.RateLimiter("auth", middleware.AuthLimit, rdb, log)
	apiLimit := middleware.RateLimiter("api", middleware.APILimit, rdb, log)

	session.RegisterRoutes(r, sessionSvc, log, authLimit)
	store.RegisterRoutes(r, docs, sessionSvc, log)
	analytics.RegisterRoutes(r, analyticsSvc, sessionSvc, log, apiLimit)
	content.RegisterRoutes(r, reg, log)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	var handler http.Handler = r
	if cfg.BasePath != "" && cfg.BasePath != "/" {
		outer := chi.NewRouter()
		outer.Mount(cfg.BasePath, r)
		handler = outer
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler}
	go func() {
		log.Infow("apgate listening", "addr", cfg.HTTPAddr, "base_path", cfg.BasePath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	fmt.Println("apgate stopped")
}
