package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/beauchbot/beauchbot-go/internal/auth"
	"github.com/beauchbot/beauchbot-go/internal/config"
	"github.com/beauchbot/beauchbot-go/internal/conversation"
	"github.com/beauchbot/beauchbot-go/internal/directory"
	"github.com/beauchbot/beauchbot-go/internal/dispatch"
	"github.com/beauchbot/beauchbot-go/internal/events"
	"github.com/beauchbot/beauchbot-go/internal/logger"
	"github.com/beauchbot/beauchbot-go/internal/tools"
	"github.com/beauchbot/beauchbot-go/internal/twilio"
)

const serverVersion = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	// Tool traffic shares stdout with the MCP transport, so logs go to stderr.
	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel, os.Stderr)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("service", "mcp-server").Logger()

	var reader directory.Reader
	if cfg.Directory.FilePath != "" {
		reader = &directory.FileReader{Path: cfg.Directory.FilePath}
	} else {
		log.Warn().Msg("PHONE_DIRECTORY_FILE not set, directory is empty and all sends will be refused")
		reader = &directory.StaticReader{}
	}

	dirService, err := directory.NewService(reader, log.With().Str("component", "directory").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise directory service")
	}

	client, err := twilio.NewClient(cfg.Twilio, log.With().Str("component", "twilio").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise twilio client")
	}

	gate, err := auth.NewGate(dirService, log.With().Str("component", "auth-gate").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise authorization gate")
	}

	reconciler, err := conversation.NewReconciler(client, cfg.Twilio.AssistantIdentity, log.With().Str("component", "reconciler").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise conversation reconciler")
	}

	history, err := conversation.NewHistory(client, cfg.Twilio.PhoneNumber, log.With().Str("component", "history").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise conversation history")
	}

	dispatcher, err := dispatch.New(dispatch.Deps{
		Gate:          gate,
		Reconciler:    reconciler,
		Conversations: client,
		SMS:           client,
	}, cfg.Twilio.PhoneNumber, cfg.Twilio.OwnerPhoneNumber, cfg.Twilio.AssistantIdentity, log.With().Str("component", "dispatcher").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise dispatcher")
	}

	var publisher tools.EventPublisher
	if cfg.Events.Enabled() {
		prod, err := events.NewProducer(cfg.Events.Brokers, log.With().Str("component", "events-producer").Logger())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create events producer")
		}
		defer func() {
			if err := prod.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close events producer")
			}
		}()
		publisher = events.NewDispatchPublisher(prod, cfg.Events.Topic, log.With().Str("component", "events-publisher").Logger())
		log.Info().Str("topic", cfg.Events.Topic).Msg("dispatch event publishing enabled")
	}

	registry, err := tools.NewRegistry(tools.Deps{
		Sender:    dispatcher,
		Directory: dirService,
		History:   history,
		Publisher: publisher,
	}, log.With().Str("component", "tools").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise tool registry")
	}

	srv := tools.NewServer(cfg.MCP.ServerName, serverVersion, registry)

	log.Info().Str("server_name", cfg.MCP.ServerName).Msg("mcp server started on stdio")

	stdio := mcpserver.NewStdioServer(srv)
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("stdio transport terminated with error")
	}

	log.Info().Msg("mcp server stopped")
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("mcp server init failed")
}
