package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/drivemode/internal/config"
	"github.com/dukerupert/drivemode/internal/database"
	"github.com/dukerupert/drivemode/internal/device"
	"github.com/dukerupert/drivemode/internal/middleware"
	"github.com/dukerupert/drivemode/internal/model"
	"github.com/dukerupert/drivemode/internal/outbox"
	"github.com/dukerupert/drivemode/internal/store"
	ws "github.com/dukerupert/drivemode/internal/websocket"
)

func agentCmd(cfgPath *string) *cobra.Command {
	var scenarioPath string
	var keepRunning bool

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the device agent with simulated platform services",
		Long: `Runs the call watcher, SMS watcher, emergency forwarder and missed-call
handler against simulated telephony. Events arrive over HTTP at /events/call and
/events/sms, or from a YAML scenario. A UI runtime attaches at /bridge.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			var sc *device.Scenario
			if scenarioPath != "" {
				if sc, err = device.LoadScenario(scenarioPath); err != nil {
					return err
				}
			}
			ctx, stop := signalContext()
			defer stop()
			return runAgent(ctx, cfg, sc, keepRunning, logger)
		},
	}

	cmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "", "YAML scenario to replay")
	cmd.Flags().BoolVar(&keepRunning, "keep-running", false, "keep serving after the scenario finishes")
	return cmd
}

func runAgent(ctx context.Context, cfg *config.Config, sc *device.Scenario, keepRunning bool, logger *slog.Logger) error {
	db, err := database.Open(cfg.Device.DBPath)
	if err != nil {
		return fmt.Errorf("open device database: %w", err)
	}
	defer db.Close()

	prefs := store.NewPreferenceStore(db)
	hub := ws.NewHub(logger.With("component", "bridge"))
	dispatcher := outbox.New(store.NewOutboxStore(db), outboxConfig(cfg.Outbox), logger)
	dispatcher.Handle(model.TopicBridgeMissedCall, device.BridgeHandler(hub))

	policy := device.NewSimulatedPolicy(true, device.FilterAll)
	platform := device.Platform{
		Telephony: device.LogTelephony{Logger: logger.With("component", "telephony")},
		Policy:    policy,
		Tones:     device.LogTonePlayer{Logger: logger.With("component", "tones")},
		Prefs:     prefs,
	}
	checker := device.NewEmergencyClient(cfg.Device.BackendURL, cfg.Device.HTTPTimeout)
	agent := device.NewAgent(platform, checker, device.NewOutboxBridge(dispatcher), device.AgentConfig{}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /bridge", ws.HandleWebSocket(hub))
	device.NewEventHandler(agent, logger).Register(mux)
	httpServer := &http.Server{
		Addr:    cfg.Device.BridgeAddr,
		Handler: middleware.RequestLogger(logger.With("component", "http"))(mux),
	}

	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return agent.Run(ctx) })
	g.Go(func() error {
		logger.Info("device agent listening", "addr", httpServer.Addr, "backend", cfg.Device.BackendURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("bridge server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		return httpServer.Shutdown(shutdownCtx)
	})
	if sc != nil {
		g.Go(func() error {
			if err := sc.Apply(policy, prefs); err != nil {
				return err
			}
			if err := sc.Replay(ctx, agent, policy); err != nil {
				return fmt.Errorf("replay scenario: %w", err)
			}
			logger.Info("scenario finished", "steps", len(sc.Steps))
			if _, err := dispatcher.Flush(ctx); err != nil {
				logger.Error("flush bridge events", "error", err)
			}
			if !keepRunning {
				cancel()
			}
			return nil
		})
	}
	return g.Wait()
}
