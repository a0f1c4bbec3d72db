package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mstgnz/upipay/gateway"
	"github.com/mstgnz/upipay/infra/config"
	"github.com/mstgnz/upipay/infra/logger"
	"github.com/mstgnz/upipay/infra/opensearch"
	"github.com/mstgnz/upipay/infra/retry"
	"github.com/mstgnz/upipay/provider"
)

// app holds what every subcommand shares: flags, settings and the logger
type app struct {
	providerName string
	environment  string
	envFile      string
	retries      int

	cfg *config.AppConfig
	log *logger.SystemLogger
}

func (a *app) init() error {
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return fmt.Errorf("load %s: %w", a.envFile, err)
	}
	config.ResetAppConfig()
	a.cfg = config.GetAppConfig()

	// console output goes to stderr so stdout stays machine readable
	consoleConfig := logger.SystemLoggerConfig{
		EnableConsole: true,
		MinLevel:      logger.ParseLevel(a.cfg.LoggingLevel),
		Service:       "upipay",
		Version:       Version,
		Environment:   a.cfg.Environment,
		JSON:          a.cfg.LogJSON,
		Output:        os.Stderr,
	}
	a.log = logger.InitGlobalLogger(nil, consoleConfig)

	if a.cfg.EnableLogging {
		client, err := opensearch.NewClient(a.cfg)
		if err != nil {
			logger.Warn("opensearch disabled", logger.LogContext{Fields: map[string]any{"error": err.Error()}})
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.EnsureIndex(ctx); err != nil {
			logger.Warn("opensearch index check failed", logger.LogContext{Fields: map[string]any{"error": err.Error()}})
		}

		consoleConfig.EnableSink = true
		a.log = logger.InitGlobalLogger(opensearch.NewLogger(client), consoleConfig)
	}
	return nil
}

func (a *app) selectedProvider() provider.Name {
	name := a.providerName
	if name == "" {
		name = a.cfg.Provider
	}
	return provider.Name(strings.ToLower(strings.TrimSpace(name)))
}

// gateway builds the gateway from UPIPAY_* settings and credentials
func (a *app) gateway() (*gateway.Gateway, error) {
	name := a.selectedProvider()
	if name == "" {
		return nil, provider.NewConfigurationError("no provider selected; pass --provider or set UPIPAY_PROVIDER", nil)
	}

	env := a.environment
	if env == "" {
		env = a.cfg.Environment
	}

	keys := make([]string, 0)
	for _, field := range provider.RequiredConfig(name) {
		keys = append(keys, field.Key)
	}

	return gateway.New(gateway.Config{
		Provider:    name,
		Credentials: config.LoadCredentials(string(name), keys),
		Environment: provider.Environment(env),
		Options: provider.Options{
			WebhookURL: a.cfg.WebhookURL,
			BaseURL:    a.cfg.BaseURL,
			Transport:  provider.NewHTTPTransport(a.cfg.HTTPTimeout, a.cfg.EnableBreaker, a.cfg.BreakerTimeout),
			Logger:     a.log,
		},
	})
}

func (a *app) retryOptions() retry.Options {
	opts := retry.DefaultOptions()
	opts.MaxAttempts = max(a.retries, 1)
	log := a.log.WithContext(logger.LogContext{Provider: string(a.selectedProvider())})
	opts.OnRetry = func(err error, attempt int) {
		log.AddField("attempt", attempt).AddField("error", err.Error()).Warn("retrying provider call")
	}
	return opts
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readPayload reads a file, or stdin for "-"
func readPayload(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
