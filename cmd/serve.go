package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/camden-git/faceattend/config"
	"github.com/camden-git/faceattend/handlers"
	"github.com/camden-git/faceattend/models"
	"github.com/camden-git/faceattend/realtime"
	"github.com/camden-git/faceattend/workers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the attendance HTTP API. The gallery is loaded from
KNOWN_FACES_PATH before the server accepts requests.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("port", "", "Port to listen on (overrides PORT)")
}

func newRouter(a *app) http.Handler {
	cfg := a.cfg
	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", handlers.AdminKeyHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	rh := &handlers.RecognitionHandler{
		Service:           a.service,
		DefaultTolerance:  cfg.Tolerance,
		AttendanceBackend: cfg.AttendanceBackend,
	}
	ah := &handlers.AttendanceHandler{Service: a.service}
	requireAdmin := handlers.RequireAdminKey(models.AdminKey{Hash: cfg.AdminKeyHash})

	// the websocket feed is long-lived and must not get the request timeout
	r.Get("/ws/attendance", a.hub.ServeWS(realtime.NewUpgrader(cfg.AllowedOrigins)))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(handlers.LimitBody(cfg.MaxUploadBytes))

		r.Get("/health", rh.Health)
		r.Post("/recognize", rh.Recognize)
		r.Get("/known_faces", rh.KnownFaces)
		r.Get("/attendance", ah.ListAttendance)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Post("/register_person", rh.RegisterPerson)
			r.Post("/reload", rh.Reload)
		})
	})

	r.NotFound(handlers.NotFound)
	return r
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	go a.hub.Run()

	log.Printf("Loading known faces from: %s", cfg.KnownFacesPath)
	if a.service.Ready() {
		n, err := a.service.Reload(cmd.Context())
		if err != nil {
			log.Printf("Warning: Initial gallery load failed: %v", err)
		} else {
			log.Printf("Loaded %d known identities", n)
		}
	}

	if cfg.ReloadInterval > 0 && a.service.Ready() {
		scheduler, err := workers.NewReloadScheduler(a.service, cfg.ReloadInterval)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Printf("Scheduled gallery reload every %s", cfg.ReloadInterval)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(a),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	fmt.Printf("Server starting on http://localhost:%s\n", cfg.Port)
	log.Printf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
