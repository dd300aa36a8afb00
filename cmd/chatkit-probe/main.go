// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

// chatkit-probe opens a live chat session against real endpoints for
// manual protocol verification. It joins one conversation, prints
// state changes as they happen, and sends each stdin line as a text
// message. Useful for poking a staging backend without a browser.
//
// Usage:
//
//	chatkit-probe --config chatkit.yaml --env development \
//	    --conversation c1 [--token $CHATKIT_TOKEN] [--metrics-listen :9107]
//
// The session token can come from the --token flag or the
// CHATKIT_TOKEN environment variable; a .env file in the working
// directory is loaded first if present.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/tourbase/chatkit/api"
	"github.com/tourbase/chatkit/chat"
	"github.com/tourbase/chatkit/config"
	"github.com/tourbase/chatkit/lib/ref"
	"github.com/tourbase/chatkit/lib/telemetry"
	"github.com/tourbase/chatkit/transport"
	"github.com/tourbase/chatkit/upload"
	"github.com/tourbase/chatkit/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chatkit-probe: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.String("config", "chatkit.yaml", "path to the config file")
	env := pflag.String("env", "development", "environment section to resolve (development, production)")
	conversation := pflag.String("conversation", "", "conversation ID to join")
	token := pflag.String("token", "", "session token (defaults to CHATKIT_TOKEN)")
	metricsListen := pflag.String("metrics-listen", "", "address for the /metrics endpoint, empty to disable")
	verbose := pflag.BoolP("verbose", "v", false, "debug logging")
	pflag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Best effort: a missing .env just means the environment is
	// already set up.
	if err := godotenv.Load(); err == nil {
		logger.Debug("loaded .env")
	}

	if *conversation == "" {
		return fmt.Errorf("--conversation is required")
	}
	conversationID, err := ref.ParseConversationID(*conversation)
	if err != nil {
		return err
	}
	sessionToken := *token
	if sessionToken == "" {
		sessionToken = os.Getenv("CHATKIT_TOKEN")
	}
	if sessionToken == "" {
		return fmt.Errorf("no session token: pass --token or set CHATKIT_TOKEN")
	}

	fileConfig, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	settings, err := fileConfig.Resolve(*env)
	if err != nil {
		return err
	}

	identity, err := api.IdentityFromToken(sessionToken)
	if err != nil {
		return err
	}
	logger.Info("authenticated", "user", identity.UserID, "role", identity.Role)

	var metrics *telemetry.Metrics
	if *metricsListen != "" {
		metrics = telemetry.New(prometheus.DefaultRegisterer)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics listening", "addr", *metricsListen)
			if err := http.ListenAndServe(*metricsListen, mux); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	client, err := api.NewClient(api.ClientConfig{
		BaseURL:   settings.APIBaseURL,
		AuthToken: sessionToken,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	socket, err := transport.NewSocket(transport.Config{
		URL:                  settings.SocketURL,
		Logger:               logger,
		Metrics:              metrics,
		HeartbeatInterval:    settings.HeartbeatInterval,
		ReconnectBaseDelay:   settings.ReconnectBaseDelay,
		MaxReconnectAttempts: settings.MaxReconnectAttempts,
	})
	if err != nil {
		return err
	}
	tracker, err := upload.NewTracker(upload.TrackerConfig{
		Service: client,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}

	session, err := chat.NewSession(chat.SessionConfig{
		ConversationID: conversationID,
		LocalUser: wire.UserInfo{
			ID:   identity.UserID,
			Name: identity.Name,
			Role: identity.Role,
		},
		API:           client,
		Transport:     socket,
		Uploader:      tracker,
		Logger:        logger,
		Metrics:       metrics,
		TypingTimeout: settings.TypingTimeout,
		HistoryLimit:  settings.HistoryLimit,
		OnUpdate:      printUpdate(logger),
	})
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.Start(ctx); err != nil {
		return err
	}
	logger.Info("session started", "conversation", conversationID)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			message, err := session.SendMessage(ctx, chat.SendMessageRequest{Content: line})
			if err != nil {
				logger.Error("send failed", "error", err)
				continue
			}
			logger.Info("sent", "message", message.ID, "status", message.Status)
		}
	}
}

// printUpdate logs the coarse session state on every snapshot; message
// traffic at debug level so the default output stays readable.
func printUpdate(logger *slog.Logger) func(chat.Snapshot) {
	var lastState chat.ConnState
	return func(snapshot chat.Snapshot) {
		if snapshot.State != lastState {
			lastState = snapshot.State
			logger.Info("session state", "state", snapshot.State,
				"connectionError", snapshot.ConnectionError)
		}
		logger.Debug("snapshot", "messages", len(snapshot.Messages),
			"typing", len(snapshot.Typing))
	}
}
