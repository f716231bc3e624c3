package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"zelton/internal/auth"
	"zelton/internal/db"
	"zelton/internal/events"
	"zelton/internal/intents"
	"zelton/internal/mailer"
	"zelton/internal/metrics"
	"zelton/internal/notifications"
	"zelton/internal/payments"
	"zelton/internal/poller"
	"zelton/internal/ratelimiter"
	"zelton/internal/watch"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	fmt.Println("Invalid", key, "defaulting to", defaultValue)
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	fmt.Println("Invalid", key, "defaulting to", defaultValue)
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnvOrDefault(key, strconv.FormatBool(defaultValue))
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	fmt.Println("Invalid", key, "defaulting to", defaultValue)
	return defaultValue
}

// LoadRateLimiterConfig retrieves rate limiter settings from environment variables
func LoadRateLimiterConfig() ratelimiter.Config {
	return ratelimiter.Config{
		RequestsPerTimeFrame: getEnvAsInt("RATELIMITER_REQUESTS_COUNT", 200),
		TimeFrame:            getEnvAsDuration("RATELIMITER_TIME_FRAME", 5*time.Second),
		Enabled:              getEnvAsBool("RATE_LIMITER_ENABLED", false),
	}
}

func loadConfig() config {
	var brokers []string
	for _, b := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	return config{
		addr:   getEnvOrDefault("ADDR", ":8080"),
		env:    getEnvOrDefault("ENV", "development"),
		apiURL: getEnvOrDefault("EXTERNAL_URL", "localhost:8080"),
		db: dbConfig{
			addr:        os.Getenv("DB_ADDR"),
			maxConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			maxIdleTime: getEnvOrDefault("DB_MAX_IDLE_TIME", "15m"),
		},
		intents: intentsConfig{
			file: getEnvOrDefault("INTENTS_FILE", "data/payment_intents.json"),
		},
		backend: backendConfig{
			baseURL:          os.Getenv("BACKEND_URL"),
			token:            os.Getenv("BACKEND_TOKEN"),
			rentPath:         getEnvOrDefault("BACKEND_RENT_VERIFY_PATH", payments.DefaultRentVerifyPath),
			subscriptionPath: getEnvOrDefault("BACKEND_SUBSCRIPTION_VERIFY_PATH", payments.DefaultSubscriptionVerifyPath),
			timeout:          getEnvAsDuration("BACKEND_TIMEOUT", 8*time.Second),
		},
		poll: pollConfig{
			interval:      getEnvAsDuration("POLL_INTERVAL", poller.DefaultInterval),
			maxAttempts:   getEnvAsInt("POLL_MAX_ATTEMPTS", poller.DefaultMaxAttempts),
			notifyTimeout: getEnvAsDuration("NOTIFY_TIMEOUT", 30*time.Second),
			retention:     getEnvAsDuration("RESOLVED_RETENTION", 24*time.Hour),
		},
		mail: mailConfig{
			host:      os.Getenv("SMTP_HOST"),
			port:      getEnvAsInt("SMTP_PORT", 587),
			username:  os.Getenv("SMTP_USERNAME"),
			password:  os.Getenv("SMTP_PASSWORD"),
			fromEmail: os.Getenv("FROM_EMAIL"),
		},
		push: pushConfig{
			expoAccessToken: os.Getenv("EXPO_ACCESS_TOKEN"),
		},
		kafka: kafkaConfig{
			brokers: brokers,
			topic:   getEnvOrDefault("KAFKA_TOPIC", events.DefaultTopic),
		},
		auth: authConfig{
			basic: basicConfig{
				user:     os.Getenv("AUTH_BASIC_USER"),
				passHash: os.Getenv("AUTH_BASIC_PASS_HASH"),
			},
			token: tokenConfig{
				secret: os.Getenv("AUTH_TOKEN_SECRET"),
				exp:    time.Hour * 24 * 3, // 3 days
				aud:    getEnvOrDefault("AUTH_TOKEN_AUD", "zelton-app"),
				iss:    getEnvOrDefault("AUTH_TOKEN_ISS", "zelton"),
			},
		},
		rateLimiter: LoadRateLimiterConfig(),
	}
}

// NewLogger creates a new zap logger with color.
func NewLogger() (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)

	level := zapcore.InfoLevel
	if lvl, ok := os.LookupEnv("LOG_LEVEL"); ok {
		if err := level.Set(lvl); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
	}

	core := zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level)

	return zap.New(core).Sugar(), nil
}

var version = "0.3.0"

//	@title			Zelton Payments API
//	@description	Tracks rent and subscription payments until the gateway confirms them.

//	@contact.name	API Support
//	@contact.email	support@zelton.co.in

//	@BasePath					/v1
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						Authorization
//	@description

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	cfg := loadConfig()

	logger, err := NewLogger()
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer logger.Sync()

	if cfg.backend.baseURL == "" {
		logger.Fatal("BACKEND_URL is required")
	}
	if cfg.auth.token.secret == "" {
		logger.Fatal("AUTH_TOKEN_SECRET is required")
	}

	ctx := context.Background()

	// Intent store
	var (
		store     intents.Store
		notifiers []watch.Notifier
	)
	if cfg.db.addr != "" {
		if err := db.Migrate(cfg.db.addr); err != nil {
			logger.Fatal(err)
		}
		pool, err := db.New(ctx, cfg.db.addr, int32(cfg.db.maxConns), cfg.db.maxIdleTime)
		if err != nil {
			logger.Fatal(err)
		}
		defer pool.Close()
		logger.Info("database connection pool established")

		expvar.Publish("database", expvar.Func(func() any {
			s := pool.Stat()
			return map[string]int64{
				"total_conns":    int64(s.TotalConns()),
				"idle_conns":     int64(s.IdleConns()),
				"acquired_conns": int64(s.AcquiredConns()),
				"acquire_count":  s.AcquireCount(),
			}
		}))
		store = intents.NewPostgresStore(pool)
		notifiers = append(notifiers, intents.NewLogsRepository(pool))
	} else {
		fs, err := intents.NewFileStore(cfg.intents.file)
		if err != nil {
			logger.Fatal(err)
		}
		logger.Infow("keeping payment intents on disk", "path", cfg.intents.file)
		store = fs
	}

	// Verifiers
	pm := payments.NewPaymentManager()
	pm.RegisterVerifier(payments.KindRent,
		payments.NewRESTVerifier(cfg.backend.baseURL, cfg.backend.rentPath, cfg.backend.token, cfg.backend.timeout))
	pm.RegisterVerifier(payments.KindSubscription,
		payments.NewRESTVerifier(cfg.backend.baseURL, cfg.backend.subscriptionPath, cfg.backend.token, cfg.backend.timeout))

	// Notifiers
	if cfg.mail.host != "" {
		smtp, err := mailer.NewSMTPMailer(cfg.mail.host, cfg.mail.port, cfg.mail.username, cfg.mail.password, cfg.mail.fromEmail)
		if err != nil {
			logger.Fatal(err)
		}
		notifiers = append(notifiers, notifications.NewEmailNotifier(smtp))
	}
	notifiers = append(notifiers, notifications.NewPushNotifier(notifications.NewExpoSender(cfg.push.expoAccessToken)))
	if len(cfg.kafka.brokers) > 0 {
		writer := events.NewKafkaWriter(cfg.kafka.brokers, cfg.kafka.topic, logger)
		publisher := events.NewKafkaPublisher(writer, logger)
		defer publisher.Close()
		notifiers = append(notifiers, publisher)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	watcher := watch.New(pm, store, notifiers, m, logger, watch.Config{
		Interval:      cfg.poll.interval,
		MaxAttempts:   cfg.poll.maxAttempts,
		NotifyTimeout: cfg.poll.notifyTimeout,
	})

	resumed, err := watcher.Resume(ctx)
	if err != nil {
		logger.Fatal(err)
	}
	logger.Infow("resumed payment watches", "count", resumed)

	// Payment proofs
	var proofs proofUploader
	if cloudinaryURL := os.Getenv("CLOUDINARY_URL"); cloudinaryURL != "" {
		cld, err := cloudinary.NewFromURL(cloudinaryURL)
		if err != nil {
			logger.Fatal(err)
		}
		proofs = &cloudinaryUploader{cld: cld}
	}

	rateLimiter := ratelimiter.NewFixedWindowLimiter(
		cfg.rateLimiter.RequestsPerTimeFrame,
		cfg.rateLimiter.TimeFrame,
	)

	jwtAuthenticator := auth.NewJWTAuthenticator(
		cfg.auth.token.secret,
		cfg.auth.token.aud,
		cfg.auth.token.iss,
		cfg.auth.token.exp,
	)

	app := &application{
		config:        cfg,
		logger:        logger,
		watcher:       watcher,
		proofs:        proofs,
		authenticator: jwtAuthenticator,
		rateLimiter:   rateLimiter,
		registry:      registry,
	}

	//Metrics collected http://localhost:8080/v1/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))
	expvar.Publish("payments_in_flight", expvar.Func(func() any {
		return len(watcher.InFlight())
	}))

	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	app.pruneEvery(bgCtx, time.Hour)

	mux := app.mount()

	logger.Fatal(app.run(mux))
}
