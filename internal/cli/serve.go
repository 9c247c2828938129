package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"face-attendance-go/internal/api/handlers"
	"face-attendance-go/internal/api/middleware"
	"face-attendance-go/internal/core/attendance"
	"face-attendance-go/internal/core/enrollment"
	"face-attendance-go/internal/integrations/homeassistant"
	"face-attendance-go/internal/integrations/mqtt"
	"face-attendance-go/internal/server"
	"face-attendance-go/internal/server/sse"
	"face-attendance-go/internal/services"
	"face-attendance-go/internal/services/cleanup"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance HTTP service",
	Long: `Start the HTTP API with live recognition, server-sent events and
optional MQTT publishing including Home Assistant discovery.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides configuration)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides configuration)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if port := mustGetInt(cmd, "port"); port > 0 {
		a.cfg.Server.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		a.cfg.Server.Host = host
	}

	if err := a.withVision(); err != nil {
		return fmt.Errorf("failed to initialize vision service: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := sse.NewHub()
	go hub.Run(ctx)

	// MQTT und Home Assistant sind optionale Ziele des Notifiers
	var targets []services.AttendancePublisher
	var mqttClient *mqtt.Client
	if a.cfg.MQTT.Enabled {
		mqttClient = mqtt.NewClient(a.cfg.MQTT)
		if err := mqttClient.Start(); err != nil {
			log.Errorf("MQTT unavailable, continuing without it: %v", err)
		} else {
			defer mqttClient.Stop()

			var discovery *homeassistant.DiscoveryManager
			if a.cfg.MQTT.HomeAssistant.Enabled {
				discovery = homeassistant.NewDiscoveryManager(mqttClient, a.cfg.MQTT.HomeAssistant.DiscoveryPrefix)
				if classes, err := a.repo.ListClasses(); err != nil {
					log.Errorf("Failed to list classes for Home Assistant discovery: %v", err)
				} else {
					log.Infof("Registered %d Home Assistant sensors", discovery.RegisterClasses(classes))
				}
			}
			targets = append(targets, homeassistant.NewPublisher(mqttClient, discovery))
		}
	}

	notifier := services.NewNotifierService(hub, targets...)
	manager := attendance.NewManager(a.repo, a.cfg.Attendance, attendance.WithPublisher(notifier))
	live := attendance.NewLiveSession(manager, a.vision)
	live.Restore()

	if mqttClient != nil && mqttClient.IsConnected() {
		mqttClient.RegisterHandler(services.NewCommandService(a.repo, live, manager))
	}

	enroller := enrollment.NewEnroller(a.vision, a.repo, a.cfg.Enrollment)
	enroller.OnRosterChange(live)
	pool := enrollment.NewWorkerPool(enroller, a.cfg.Enrollment.Workers)
	defer pool.Shutdown()

	cleanupService := cleanup.NewCleanupService(a.repo, manager, a.cfg.Cleanup, enroller.Root())
	go cleanupService.Start(ctx)

	translator, err := middleware.NewTranslator(middleware.I18nConfig{DefaultLanguage: a.cfg.Server.DefaultLanguage})
	if err != nil {
		return fmt.Errorf("failed to load translations: %w", err)
	}

	api := handlers.NewAPIHandler(handlers.Dependencies{
		Repo:       a.repo,
		Enrollment: pool,
		Pool:       pool,
		Manager:    manager,
		Live:       live,
		Hub:        hub,
		Debug:      a.vision.DebugSvc,
	})
	srv := server.NewServer(a.cfg.Server, api, translator)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Shutdown signal received")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Error during shutdown: %v", err)
		}
	}()

	fmt.Printf("Face attendance service listening on http://%s:%d\n", a.cfg.Server.Host, a.cfg.Server.Port)
	fmt.Println("Press Ctrl+C to stop")

	return srv.Start()
}
