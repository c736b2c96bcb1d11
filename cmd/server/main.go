package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"gymslots/internal/api"
	"gymslots/internal/auth"
	"gymslots/internal/config"
	"gymslots/internal/db"
	"gymslots/internal/jobs"
	"gymslots/internal/repository"
	"gymslots/internal/service"
)

func main() {
	godotenv.Load()
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	database, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	if err := database.Ping(); err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	if err := db.RunMigrations(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("Unknown timezone %q, falling back to UTC", cfg.Timezone)
		loc = time.UTC
	}

	clock := service.SystemClock()
	scheduleRepo := repository.NewScheduleRepository(database)
	reminderRepo := repository.NewReminderRepository(database)
	availabilityRepo := repository.NewAvailabilityRepository(database)
	userRepo := repository.NewUserRepository(database)

	sender := service.NewSenderService(cfg)
	var sms service.SMSSender
	if cfg.TwilioAccountSID != "" {
		sms = sender
	}
	signer := service.NewTokenService(cfg.JWTSecret, clock)
	reminderSvc := service.NewReminderService(reminderRepo, scheduleRepo, sender, sms, signer, clock,
		cfg.FrontendBaseURL, cfg.ClassReminderTemplateID, cfg.RoomReminderTemplateID,
		cfg.RemindersBatchSize, loc)
	bookingSvc := service.NewBookingService(scheduleRepo, reminderSvc, clock)
	classSvc := service.NewClassService(scheduleRepo, reminderSvc, clock)
	availabilitySvc := service.NewAvailabilityService(availabilityRepo)
	jobSvc := service.NewJobService(scheduleRepo, clock)
	authSvc := service.NewAuthService(userRepo, cfg.JWTSecret, clock)

	scheduleHandler := api.NewScheduleHandler(bookingSvc, classSvc, availabilitySvc)
	jobsHandler := api.NewJobsHandler(reminderSvc, jobSvc, cfg.FrontendBaseURL)
	authHandler := api.NewAuthHandler(authSvc)

	r := mux.NewRouter()

	// Public endpoints
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/jobs/cancel-reservation", jobsHandler.CancelReservation).Methods("GET")

	// Authenticated endpoints
	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(auth.Middleware(cfg.JWTSecret))
	apiRouter.HandleFunc("/rooms/{id}/reservations", scheduleHandler.CreateRoomBooking).Methods("POST")
	apiRouter.HandleFunc("/classes", scheduleHandler.CreateClass).Methods("POST")
	apiRouter.HandleFunc("/classes/{id}/enrollments", scheduleHandler.Enroll).Methods("POST")
	apiRouter.HandleFunc("/calendar/rooms/{id}", scheduleHandler.GetRoomAvailability).Methods("GET")
	apiRouter.HandleFunc("/calendar/user", scheduleHandler.GetUserCalendar).Methods("GET")

	// Jobs endpoints (internal key protected)
	jobsRouter := r.PathPrefix("/jobs").Subrouter()
	jobsRouter.Use(auth.InternalKeyMiddleware(cfg.InternalJobKey))
	jobsRouter.HandleFunc("/send-reminders", jobsHandler.SendReminders).Methods("POST")
	jobsRouter.HandleFunc("/sweep-finished", jobsHandler.SweepFinished).Methods("POST")
	jobsRouter.HandleFunc("/status", jobsHandler.Status).Methods("GET")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := jobs.NewRunner()
	if cfg.RemindersEnabled {
		runner.Add(jobs.Task{
			Name:  "send-reminders",
			Every: cfg.RemindersInterval,
			Run: func(ctx context.Context) error {
				_, err := reminderSvc.ProcessPendingReminders(ctx)
				return err
			},
		})
	}
	runner.Add(jobs.Task{
		Name:  "sweep-finished",
		Every: cfg.SweepInterval,
		Run:   jobSvc.SweepFinished,
	})
	runner.Start(ctx)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{cfg.FrontendBaseURL}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Internal-Key"}),
	)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handlers.LoggingHandler(log.Writer(), corsHandler(r)),
	}

	go func() {
		log.Printf("Server running on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
