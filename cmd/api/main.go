package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"ito-server/internal/server"
)

func gracefulShutdown(customServer *server.Server, httpServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("Shutdown signal received, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := customServer.Shutdown(ctx); err != nil {
		log.Printf("Error during custom shutdown: %v", err)
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown with error: %v", err)
	}

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func run(cfg server.Config) error {
	customServer, httpServer := server.NewServer(cfg)

	done := make(chan bool, 1)
	go gracefulShutdown(customServer, httpServer, done)

	log.Printf("Listening on %s", httpServer.Addr)
	err := httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")
	return nil
}

func newCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ITO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := server.Config{}

	cmd := &cobra.Command{
		Use:           "ito-server",
		Short:         "Game server for an ordered-card party game: rooms, rounds, reveals.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.IntVarP(&cfg.Port, "port", "p", 0, "port to listen on (env: ITO_PORT, PORT)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", "", "postgres connection string; empty disables persistence (env: ITO_DATABASE_URL, DATABASE_URL)")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "public base URL used in join links and QR codes (env: ITO_BASE_URL, BASE_URL)")
	fs.IntVar(&cfg.PoolMin, "pool-min", 1, "smallest card value in the deck (env: ITO_POOL_MIN)")
	fs.IntVar(&cfg.PoolMax, "pool-max", 100, "largest card value in the deck (env: ITO_POOL_MAX)")
	fs.DurationVar(&cfg.CleanupAge, "cleanup-age", 24*time.Hour, "age after which finished rooms are pruned (env: ITO_CLEANUP_AGE)")
	fs.IntVar(&cfg.RateLimit, "rate-limit", 30, "max messages per connection per window (env: ITO_RATE_LIMIT)")
	fs.DurationVar(&cfg.RateWindow, "rate-window", 10*time.Second, "rate limit window (env: ITO_RATE_WINDOW)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}

func main() {
	cobra.CheckErr(newCmd().Execute())
}
