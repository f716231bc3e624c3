package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zelton/docs" //this is required to generate swagger docs
	"zelton/internal/auth"
	"zelton/internal/ratelimiter"
	"zelton/internal/watch"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type application struct {
	config        config
	logger        *zap.SugaredLogger
	watcher       *watch.Watcher
	proofs        proofUploader
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
	registry      *prometheus.Registry
}

type config struct {
	addr        string
	env         string
	apiURL      string
	db          dbConfig
	intents     intentsConfig
	backend     backendConfig
	poll        pollConfig
	mail        mailConfig
	push        pushConfig
	kafka       kafkaConfig
	auth        authConfig
	rateLimiter ratelimiter.Config
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type tokenConfig struct {
	secret string
	exp    time.Duration
	aud    string
	iss    string
}

type basicConfig struct {
	user     string
	passHash string
}

type dbConfig struct {
	addr        string
	maxConns    int
	maxIdleTime string
}

// intentsConfig picks where in-flight intents are kept. Postgres is used
// when DB_ADDR is set, the JSON file otherwise.
type intentsConfig struct {
	file string
}

type backendConfig struct {
	baseURL          string
	token            string
	rentPath         string
	subscriptionPath string
	timeout          time.Duration
}

type pollConfig struct {
	interval      time.Duration
	maxAttempts   int
	notifyTimeout time.Duration
	retention     time.Duration
}

type mailConfig struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
}

type pushConfig struct {
	expoAccessToken string
}

type kafkaConfig struct {
	brokers []string
	topic   string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))
	r.Use(app.RateLimiterMiddleware)

	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)
		r.With(app.BasicAuthMiddleware()).Get("/metrics",
			promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}).ServeHTTP)

		docsURL := fmt.Sprintf("%s/swagger/doc.json", app.config.addr)
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(docsURL)))

		r.Route("/payments", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Post("/watch", app.watchPaymentHandler)

			r.Route("/{orderID}", func(r chi.Router) {
				r.Get("/", app.getPaymentStatusHandler)
				r.Delete("/", app.cancelPaymentWatchHandler)
				r.Post("/retry", app.retryPaymentHandler)
				r.Get("/verify", app.verifyPaymentHandler)
				r.Post("/proof", app.uploadPaymentProofHandler)
			})
		})
	})
	return r
}

func (app *application) run(mux http.Handler) error {
	// Docs
	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.Host = app.config.apiURL
	docs.SwaggerInfo.BasePath = "/v1"

	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	// Implementing graceful shutdown
	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		if err := srv.Shutdown(ctx); err != nil {
			shutdown <- err
			return
		}

		// Running polls stop here; their intents stay persisted for the next start.
		shutdown <- app.watcher.Close(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
