package main

import (
	"context"
	"errors"
	"fmt"
	"line_chatbot/src"
	"line_chatbot/src/flow"
	"line_chatbot/src/intent"
	"line_chatbot/src/logger"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "line_chatbot",
		Short:        "LINE booking and chat bot",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), envFile)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "flows [file]",
		Short: "Validate and print a flow definition",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return printFlows(cmd, path)
		},
	})

	return root
}

func serve(ctx context.Context, envFile string) error {
	config, err := src.LoadConfig(envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.InitLogger(config.LogConfig); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, config)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to start")
		return err
	}
	defer app.Close()

	httpServer := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           app.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("Webhook server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func printFlows(cmd *cobra.Command, path string) error {
	def, err := flow.LoadDefinition(path)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to render flow definition: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))

	fmt.Fprintln(cmd.OutOrStdout(), "# text routing order:")
	c := intent.New(def, nil, nil)
	for i, name := range c.Rules() {
		fmt.Fprintf(cmd.OutOrStdout(), "#  %d. %s\n", i+1, name)
	}
	return nil
}
