// WaterWallet is a WhatsApp advisory bot: it walks farmers through guided
// flows (sowing advisory, groundwater solvency, crop recommendations) and
// answers from the advisory backend APIs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jalniti/waterwallet/internal/api"
	"github.com/jalniti/waterwallet/internal/backend"
	"github.com/jalniti/waterwallet/internal/conversation"
	"github.com/jalniti/waterwallet/internal/messaging"
	"github.com/jalniti/waterwallet/internal/store"
	"github.com/jalniti/waterwallet/internal/util"
	"github.com/jalniti/waterwallet/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Config holds environment configuration.
type Config struct {
	BackendBaseURL   string
	APIAddr          string
	VerifyToken      string
	AccessToken      string
	PhoneNumberID    string
	APIVersion       string
	TestNumber       string
	MessagingBackend string
	SessionDBDriver  string
	SessionDBDSN     string
	WhatsAppDBDSN    string
	TwilioSID        string
	TwilioToken      string
	TwilioFrom       string
}

// Flags holds command line flag values.
type Flags struct {
	backendURL       *string
	apiAddr          *string
	verifyToken      *string
	testNumber       *string
	messagingBackend *string
	sessionDBDriver  *string
	sessionDBDSN     *string
	whatsappDBDSN    *string
	qrOutput         *string
	numericCode      *bool
}

func main() {
	initializeLogger()
	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(config, flags); err != nil {
		slog.Error("WaterWallet failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("WaterWallet exited")
}

// initializeLogger sets up structured logging, level controlled by LOG_LEVEL.
func initializeLogger() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from the environment and .env file.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	config := Config{
		BackendBaseURL:   os.Getenv("BACKEND_BASE_URL"),
		APIAddr:          util.GetEnvOrDefault("API_ADDR", api.DefaultAddr),
		VerifyToken:      os.Getenv("VERIFY_TOKEN"),
		AccessToken:      os.Getenv("ACCESS_TOKEN"),
		PhoneNumberID:    os.Getenv("PHONE_NUMBER_ID"),
		APIVersion:       os.Getenv("WHATSAPP_API_VERSION"),
		TestNumber:       os.Getenv("TEST_NUMBER"),
		MessagingBackend: util.GetEnvOrDefault("MESSAGING_BACKEND", "cloudapi"),
		SessionDBDriver:  util.GetEnvOrDefault("SESSION_DB_DRIVER", "memory"),
		SessionDBDSN:     os.Getenv("SESSION_DB_DSN"),
		WhatsAppDBDSN:    os.Getenv("WHATSAPP_DB_DSN"),
		TwilioSID:        os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_FROM_NUMBER"),
	}

	slog.Debug("environment loaded",
		"BACKEND_BASE_URL", config.BackendBaseURL,
		"API_ADDR", config.APIAddr,
		"MESSAGING_BACKEND", config.MessagingBackend,
		"SESSION_DB_DRIVER", config.SessionDBDriver,
		"TEST_NUMBER_SET", config.TestNumber != "")
	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		backendURL:       flag.String("backend-url", config.BackendBaseURL, "advisory backend base URL (overrides $BACKEND_BASE_URL)"),
		apiAddr:          flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		verifyToken:      flag.String("verify-token", config.VerifyToken, "webhook verification token (overrides $VERIFY_TOKEN)"),
		testNumber:       flag.String("test-number", config.TestNumber, "restrict processing to this number (overrides $TEST_NUMBER)"),
		messagingBackend: flag.String("messaging-backend", config.MessagingBackend, "delivery backend: cloudapi, whatsmeow or twilio (overrides $MESSAGING_BACKEND)"),
		sessionDBDriver:  flag.String("session-db-driver", config.SessionDBDriver, "session store driver: memory, sqlite or postgres (overrides $SESSION_DB_DRIVER)"),
		sessionDBDSN:     flag.String("session-db-dsn", config.SessionDBDSN, "session store DSN (overrides $SESSION_DB_DSN)"),
		whatsappDBDSN:    flag.String("whatsapp-db-dsn", config.WhatsAppDBDSN, "whatsmeow database DSN (overrides $WHATSAPP_DB_DSN)"),
		qrOutput:         flag.String("qr-output", "", "path to write the whatsmeow login QR code"),
		numericCode:      flag.Bool("numeric-code", false, "use a numeric whatsmeow login code instead of a QR code"),
	}
	flag.Parse()
	return flags
}

func run(config Config, flags Flags) error {
	if *flags.backendURL == "" {
		return fmt.Errorf("backend base URL not configured (set BACKEND_BASE_URL or --backend-url)")
	}

	sessions, err := buildSessionStore(flags)
	if err != nil {
		return err
	}
	defer sessions.Close()

	timeout := util.ParseDurationEnv("BACKEND_TIMEOUT", backend.DefaultTimeout)
	sowing := backend.NewSowingClient(*flags.backendURL, backend.WithTimeout(timeout))
	solvency := backend.NewSolvencyClient(*flags.backendURL, backend.WithTimeout(timeout))
	engine := conversation.NewEngine(sessions, sowing, solvency)

	msgService, enqueuer, err := buildMessagingService(config, flags)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := msgService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	defer msgService.Stop()

	dispatcher := messaging.NewDispatcher(msgService, engine, *flags.testNumber)
	go dispatcher.Run(ctx)

	server := api.NewServer(msgService, enqueuer,
		api.WithAddr(*flags.apiAddr),
		api.WithVerifyToken(*flags.verifyToken))

	slog.Info("WaterWallet starting",
		"backend_url", *flags.backendURL,
		"messaging_backend", *flags.messagingBackend,
		"session_store", *flags.sessionDBDriver)
	return server.Run(ctx)
}

// buildSessionStore selects the session store backend.
func buildSessionStore(flags Flags) (store.SessionStore, error) {
	driver := strings.ToLower(*flags.sessionDBDriver)
	dsn := *flags.sessionDBDSN
	if driver == "memory" && dsn != "" {
		// A DSN without an explicit driver selects the matching SQL store.
		driver = store.DetectDSNType(dsn)
	}

	switch driver {
	case "memory", "":
		return store.NewInMemoryStore(), nil
	case "sqlite", "sqlite3":
		return store.NewSQLiteStore(store.WithDSN(dsn))
	case "postgres":
		return store.NewPostgresStore(store.WithDSN(dsn))
	default:
		return nil, fmt.Errorf("unknown session store driver %q", driver)
	}
}

// buildMessagingService selects and constructs the delivery backend. The
// returned enqueuer is non-nil for webhook-fed transports.
func buildMessagingService(config Config, flags Flags) (messaging.Service, messaging.ResponseEnqueuer, error) {
	switch strings.ToLower(*flags.messagingBackend) {
	case "cloudapi", "":
		svc := messaging.NewCloudAPIService(config.AccessToken, config.PhoneNumberID,
			messaging.WithAPIVersion(config.APIVersion))
		return svc, svc, nil

	case "whatsmeow":
		waOpts := []whatsapp.Option{}
		if *flags.whatsappDBDSN != "" {
			waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.whatsappDBDSN))
		}
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numericCode {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create whatsapp client: %w", err)
		}
		return messaging.NewWhatsAppService(client), nil, nil

	case "twilio":
		svc, err := messaging.NewTwilioService(config.TwilioSID, config.TwilioToken, config.TwilioFrom)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create twilio service: %w", err)
		}
		return svc, svc, nil

	default:
		return nil, nil, fmt.Errorf("unknown messaging backend %q", *flags.messagingBackend)
	}
}
