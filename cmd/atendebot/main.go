package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jzfdigital/atendebot/internal/api"
	"github.com/jzfdigital/atendebot/internal/flow"
	"github.com/jzfdigital/atendebot/internal/genai"
	"github.com/jzfdigital/atendebot/internal/messaging"
	"github.com/jzfdigital/atendebot/internal/session"
	"github.com/jzfdigital/atendebot/internal/util"
)

// Messaging backend names accepted by -messaging-backend.
const (
	BackendCloud  = "cloud"
	BackendTwilio = "twilio"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	sessions := buildSessionStore(flags)
	defer func() {
		if err := sessions.Close(); err != nil {
			slog.Error("Failed to close session store", "error", err)
		}
	}()

	msgService, err := buildMessagingService(flags)
	if err != nil {
		slog.Error("Failed to configure messaging backend", "error", err, "backend", *flags.backend)
		os.Exit(1)
	}

	aiClient, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		slog.Error("Failed to configure GenAI client", "error", err)
		os.Exit(1)
	}

	engine, err := flow.NewEngine(flow.NewGraph(), sessions, msgService, aiClient,
		flow.WithPaceDelay(config.PaceDelay))
	if err != nil {
		slog.Error("Failed to build turn engine", "error", err)
		os.Exit(1)
	}

	server, err := api.NewServer(engine, msgService, buildAPIOptions(flags)...)
	if err != nil {
		slog.Error("Failed to build API server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping atendebot", "backend", *flags.backend, "addr", *flags.apiAddr)
	if err := server.Run(ctx); err != nil {
		slog.Error("atendebot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("atendebot exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL   string
	OpenAIKey     string
	APIAddr       string
	VerifyToken   string
	WhatsAppToken string
	PhoneNumberID string
	Backend       string
	PaceDelay     time.Duration
}

// Flags holds command line flag values
type Flags struct {
	dbDSN       *string
	openaiKey   *string
	apiAddr     *string
	verifyToken *string
	backend     *string
}

// initializeLogger sets up structured logging; ATENDEBOT_DEBUG enables
// debug-level output.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("ATENDEBOT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		APIAddr:       os.Getenv("API_ADDR"),
		VerifyToken:   os.Getenv("VERIFY_TOKEN"),
		WhatsAppToken: os.Getenv("WHATSAPP_TOKEN"),
		PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		Backend:       os.Getenv("MESSAGING_BACKEND"),
		PaceDelay:     util.ParseDurationEnv("ATENDEBOT_PACE_DELAY", flow.DefaultPaceDelay),
	}
	if config.Backend == "" {
		config.Backend = BackendCloud
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"VERIFY_TOKEN_SET", config.VerifyToken != "",
		"WHATSAPP_TOKEN_SET", config.WhatsAppToken != "",
		"WHATSAPP_PHONE_NUMBER_ID_SET", config.PhoneNumberID != "",
		"MESSAGING_BACKEND", config.Backend,
		"PACE_DELAY", config.PaceDelay)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "session store DSN, SQLite path or PostgreSQL URL; empty keeps sessions in memory (overrides $DATABASE_URL)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		verifyToken: flag.String("verify-token", config.VerifyToken, "webhook verification token (overrides $VERIFY_TOKEN)"),
		backend:     flag.String("messaging-backend", config.Backend, "messaging backend, cloud or twilio (overrides $MESSAGING_BACKEND)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"verifyTokenSet", *flags.verifyToken != "",
		"backend", *flags.backend)

	return flags
}

// buildSessionStore picks the session store from the DSN. No DSN keeps
// sessions in memory, matching a single-instance deployment.
func buildSessionStore(flags Flags) session.Store {
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, using in-memory session store")
		return session.NewInMemoryStore()
	}

	var (
		store session.Store
		err   error
	)
	if session.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL session store")
		store, err = session.NewPostgresStore(session.WithDSN(*flags.dbDSN))
	} else {
		slog.Debug("Detected SQLite DSN, configuring SQLite session store", "db_path", *flags.dbDSN)
		store, err = session.NewSQLiteStore(session.WithDSN(*flags.dbDSN))
	}
	if err != nil {
		slog.Error("Failed to open session store", "error", err)
		os.Exit(1)
	}
	return store
}

// buildMessagingService constructs the configured messaging backend. Both
// backends read their credentials from the environment when not passed as
// options; missing credentials fail here, before the server starts.
func buildMessagingService(flags Flags) (messaging.Service, error) {
	switch *flags.backend {
	case BackendTwilio:
		return messaging.NewTwilioClient()
	default:
		return messaging.NewCloudAPIClient()
	}
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.verifyToken != "" {
		apiOpts = append(apiOpts, api.WithVerifyToken(*flags.verifyToken))
	}
	return apiOpts
}
