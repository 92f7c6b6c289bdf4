package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soyeahso/tablecall/internal/call"
	"github.com/soyeahso/tablecall/internal/config"
	"github.com/soyeahso/tablecall/internal/relay"
	"github.com/soyeahso/tablecall/internal/server"
	"github.com/soyeahso/tablecall/internal/store"
	"github.com/soyeahso/tablecall/internal/telephony"
	"github.com/soyeahso/tablecall/internal/voiceagent"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the reservation server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			// Initialize reservation store (SQLite or in-memory)
			var reservations store.ReservationStore
			if cfg.Storage.Store == "sqlite" {
				dbPath := cfg.Storage.Path
				if dbPath == "" {
					dbPath = filepath.Join(paths.Data, "tablecall.db")
				}
				db, err := store.Open(dbPath, log)
				if err != nil {
					return fmt.Errorf("opening database: %w", err)
				}
				defer db.Close()
				reservations = store.NewSQLiteStore(db)
				log.Info().Str("path", dbPath).Msg("using SQLite reservation store")
			} else {
				reservations = store.NewMemoryStore()
				log.Info().Msg("using in-memory reservation store")
			}

			dialer, err := telephony.NewTwilioDialer(cfg.Twilio, log)
			if err != nil {
				return fmt.Errorf("configuring telephony: %w", err)
			}

			agent := voiceagent.NewClient(cfg.ElevenLabs, log)
			simulator := voiceagent.NewSimulator(
				cfg.Server.PublicURL+"/api/agent-response", cfg.Simulation, log)

			initiator := call.NewInitiator(
				reservations, dialer, agent, simulator, cfg.Server.PublicURL, log)

			sessions := relay.NewManager(reservations, log)

			srv := server.New(cfg.Server, reservations, initiator, sessions, log)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, all, custom)")

	return cmd
}
