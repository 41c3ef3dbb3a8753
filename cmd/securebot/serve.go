package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/securebot-ai/securebot/pkg/approvals"
	"github.com/securebot-ai/securebot/pkg/gateway"
	"github.com/securebot-ai/securebot/pkg/logger"
	"github.com/securebot-ai/securebot/pkg/telemetry"
	"github.com/securebot-ai/securebot/pkg/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway HTTP service",
	Long: `Start the gateway: the message endpoint, the skill administrative
surface, routing stats, and the approval queue. Skills are hot-reloaded
when the skills directory changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().String("host", "", "Host to bind the gateway to (overrides config)")
	serveCmd.Flags().Int("port", 0, "Port to bind the gateway to (overrides config)")
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.Config{
		Enabled:        viper.GetBool("tracing.enabled"),
		ServiceName:    "securebot",
		ServiceVersion: version.Version,
		SamplerType:    viper.GetString("tracing.sampler_type"),
		SamplerRatio:   viper.GetFloat64("tracing.sampler_ratio"),
	})
	if err != nil {
		return err
	}
	defer shutdownTracer(context.Background())

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	log := logger.G(ctx)

	// Classifier warm-up is allowed to fail; intent resolution then
	// degrades to the regex fast path.
	a.classifier.Warmup(ctx)
	if !a.classifier.Ready() {
		log.Warn("classifier not ready, queries degrade to the regex fast path")
	}

	if err := a.ollama.Ping(ctx); err != nil {
		log.WithError(err).Warn("ollama unreachable at startup")
	}

	go func() {
		if err := a.registry.Watch(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("skills directory watch stopped")
		}
	}()

	server, err := gateway.NewServer(
		&gateway.ServerConfig{Host: a.cfg.Server.Host, Port: a.cfg.Server.Port},
		a.router,
		a.registry,
		approvals.NewQueue(),
		a.audit,
		a.ollama,
		a.classifier,
	)
	if err != nil {
		return err
	}

	log.WithFields(map[string]interface{}{
		"skills":  a.registry.Len(),
		"version": version.Version,
	}).Info("securebot starting")

	return server.Start(ctx)
}
