package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/beauchbot/beauchbot-go/internal/auth"
	"github.com/beauchbot/beauchbot-go/internal/config"
	"github.com/beauchbot/beauchbot-go/internal/conversation"
	"github.com/beauchbot/beauchbot-go/internal/directory"
	"github.com/beauchbot/beauchbot-go/internal/dispatch"
	"github.com/beauchbot/beauchbot-go/internal/logger"
	"github.com/beauchbot/beauchbot-go/internal/twilio"
	"github.com/beauchbot/beauchbot-go/internal/webhook"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("service", "webhook-server").Logger()

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

	dispatcher, err := dispatch.New(dispatch.Deps{
		Gate:          gate,
		Reconciler:    reconciler,
		Conversations: client,
		SMS:           client,
	}, cfg.Twilio.PhoneNumber, cfg.Twilio.OwnerPhoneNumber, cfg.Twilio.AssistantIdentity, log.With().Str("component", "dispatcher").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise dispatcher")
	}

	handler := newInboundHandler(dirService, dispatcher, cfg.Twilio.OwnerPhoneNumber, log.With().Str("component", "inbound").Logger())

	srv, err := webhook.New(
		fmt.Sprintf(":%d", cfg.App.Port),
		handler,
		log.With().Str("component", "webhook").Logger(),
		webhook.WithMaxConcurrent(int64(cfg.Webhook.MaxConcurrent)),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise webhook server")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info().Int("port", cfg.App.Port).Msg("webhook server started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("webhook server terminated with error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("webhook server shutdown failed")
	}
}

// newInboundHandler builds the default inbound pipeline: identify the sender
// through the directory and relay the message to the owner. Messages from the
// owner's own number are acknowledged in the log only.
func newInboundHandler(dir *directory.Service, dispatcher *dispatch.Dispatcher, ownerNumber string, log zerolog.Logger) webhook.Handler {
	return webhook.HandlerFunc(func(ctx context.Context, msg webhook.InboundMessage) error {
		sender := msg.From
		if contact, err := dir.FindByNumber(ctx, msg.From); err == nil {
			sender = fmt.Sprintf("%s (%s)", contact.Name, contact.PhoneNumber)
		}

		log.Info().Str("sender", sender).Str("message_sid", msg.MessageSID).Msg("inbound message received")

		if ownerNumber == "" || msg.From == ownerNumber {
			return nil
		}

		result := dispatcher.TextMe(ctx, fmt.Sprintf("New message from %s: %s", sender, msg.Body))
		if result.IsError() {
			return errors.New(result.Error)
		}
		return nil
	})
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("webhook server init failed")
}
