package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/hushreel/spoilveil/veil"
)

// startAdmin serves the read-only admin API in the background and shuts
// it down when ctx is cancelled.
func startAdmin(ctx context.Context, logger *slog.Logger, eng *veil.Engine, cfg veil.AdminConfig) {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		if cfg.PasswordHash != "" {
			r.Use(basicAuth(cfg.PasswordHash))
		}

		r.Get("/api/stats", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, eng.Stats())
		})

		r.Post("/api/scan", func(w http.ResponseWriter, req *http.Request) {
			scan, err := eng.ScanAll(req.Context())
			if err != nil {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			writeJSON(w, scan)
		})

		r.Get("/api/scans", func(w http.ResponseWriter, req *http.Request) {
			store := eng.Store()
			if store == nil {
				http.Error(w, "audit store not configured", http.StatusNotFound)
				return
			}
			rows, err := store.RecentScans(req.Context(), queryLimit(req))
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, rows)
		})

		r.Get("/api/masks", func(w http.ResponseWriter, req *http.Request) {
			store := eng.Store()
			if store == nil {
				http.Error(w, "audit store not configured", http.StatusNotFound)
				return
			}
			rows, err := store.RecentMasks(req.Context(), queryLimit(req))
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, rows)
		})
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("spoilveil: admin API starting", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("spoilveil: admin API", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()
}

// basicAuth requires HTTP basic auth with any username and a password
// matching the configured bcrypt hash.
func basicAuth(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			_, password, ok := req.BasicAuth()
			if !ok || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="spoilveil"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func queryLimit(req *http.Request) int {
	n, err := strconv.Atoi(req.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
