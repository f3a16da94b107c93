package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"writedesk/internal/app"
	"writedesk/internal/desk"
	"writedesk/internal/httputil"
	"writedesk/internal/keystore"
	"writedesk/internal/llm"
)

const (
	maxSettingsBody  = 4 << 10
	maxGenerateBody  = 8 << 10
	maxSummarizeBody = 1 << 20

	// nginx's code for a client that went away mid-request.
	statusClientClosed = 499
)

func main() {
	deps, err := app.Build(app.Options{})
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.Config.Port),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deps.Log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		deps.Log.Error("server stopped", "err", err)
		os.Exit(1)
	}
	deps.Log.Info("server stopped")
}

func newRouter(deps app.Deps) http.Handler {
	r := httputil.NewRouter(deps.Log)

	r.Get("/healthz", httputil.HealthHandler(deps.Log))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(httputil.Session(deps.Config.CookieSecure))
		r.Get("/api/settings", getSettingsHandler(deps))
		r.Put("/api/settings", saveSettingsHandler(deps))
		r.Get("/api/status", statusHandler(deps))
		r.Post("/api/generate", generateHandler(deps))
		r.Post("/api/summarize", summarizeHandler(deps))
	})
	return r
}

func getSettingsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys := deps.Keys(httputil.SessionID(r.Context()))
		httputil.WriteJSON(w, http.StatusOK, keys.Settings(r.Context()))
	}
}

func saveSettingsHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req keystore.SaveRequest
		if err := httputil.DecodeJSON(w, r, &req, maxSettingsBody); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}
		conf, err := deps.Keys(httputil.SessionID(r.Context())).Save(r.Context(), req)
		if err != nil {
			httputil.Fail(deps.Log, w, "Could not save settings. Please try again.", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, conf)
	}
}

func statusHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]bool{"busy": deps.Desk.Busy()})
	}
}

func generateHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req desk.GenerateRequest
		if err := httputil.DecodeJSON(w, r, &req, maxGenerateBody); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}
		res, err := deps.Desk.Generate(r.Context(), deps.Keys(httputil.SessionID(r.Context())), req)
		if err != nil {
			fail(deps, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, res)
	}
}

func summarizeHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req desk.SummarizeRequest
		if err := httputil.DecodeJSON(w, r, &req, maxSummarizeBody); err != nil {
			httputil.ValidationError(deps.Log, w, err)
			return
		}
		res, err := deps.Desk.Summarize(r.Context(), deps.Keys(httputil.SessionID(r.Context())), req)
		if err != nil {
			fail(deps, w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, res)
	}
}

// fail maps service errors to a status and a single display sentence.
func fail(deps app.Deps, w http.ResponseWriter, err error) {
	httputil.Fail(deps.Log, w, desk.UserMessage(err), err, statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, desk.ErrValidation), errors.Is(err, desk.ErrConfig), errors.Is(err, desk.ErrFetch):
		return http.StatusBadRequest
	case errors.Is(err, llm.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, llm.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return statusClientClosed
	default:
		return http.StatusInternalServerError
	}
}
