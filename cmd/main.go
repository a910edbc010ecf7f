package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ltg-uic/beaconsync/internal/bus"
	"github.com/ltg-uic/beaconsync/internal/db"
	"github.com/ltg-uic/beaconsync/internal/handlers"
	"github.com/ltg-uic/beaconsync/internal/logger"
	"github.com/ltg-uic/beaconsync/internal/prefs"
	"github.com/ltg-uic/beaconsync/internal/repos"
	"github.com/ltg-uic/beaconsync/internal/server"
	"github.com/ltg-uic/beaconsync/internal/services"
	"github.com/ltg-uic/beaconsync/internal/session"
	"github.com/ltg-uic/beaconsync/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	busConfigPath := utils.GetEnv("BUS_CONFIG", "configs/bus.yaml", log)
	simConfigPath := utils.GetEnv("SIM_CONFIG", "configs/simulation.yaml", log)
	prefsPath := utils.GetEnv("PREFS_PATH", "beaconsync_prefs.yaml", log)
	appMode := utils.GetEnv("APP_MODE", string(session.ModeObjectGroup), log)
	port := utils.GetEnvAsInt("PORT", 8080, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stores
	storeService, err := db.NewStoreService(log)
	if err != nil {
		log.Error("Store init failed", "error", err)
		os.Exit(1)
	}
	if err = storeService.AutoMigrateAll(); err != nil {
		log.Error("Store auto migration failed", "error", err)
		os.Exit(1)
	}

	// Repos
	log.Info("Setting up Repos from main...")
	mainTarget := services.Target{
		Store: storeService.Main(),
		Repos: repos.NewSet(storeService.Main().DB(), log),
	}
	terminalTarget := services.Target{
		Store: storeService.Terminal(),
		Repos: repos.NewSet(storeService.Terminal().DB(), log),
	}

	// Preferences
	preferences, err := prefs.Open(prefsPath, log)
	if err != nil {
		log.Error("Preference store init failed", "error", err)
		os.Exit(1)
	}

	// Bus
	log.Info("Setting up message bus from main...")
	busConfig, err := bus.LoadConfig(busConfigPath)
	if err != nil {
		log.Error("Bus config load failed", "error", err)
		os.Exit(1)
	}
	messageBus, err := bus.NewRedisBus(log, busConfig)
	if err != nil {
		log.Error("Bus init failed", "error", err)
		os.Exit(1)
	}
	defer messageBus.Close()

	// Session
	sess := session.New(log)
	sess.SetMode(session.Mode(appMode))

	// Services
	log.Info("Setting up Services from main...")
	runtimeService := services.NewRuntimeService(log, preferences)
	mergeService := services.NewMergeService(log)
	seedService := services.NewSeedService(log)
	dispatcher := services.NewDispatcher(log, messageBus)
	observationService := services.NewObservationService(log, runtimeService, dispatcher)
	router := services.NewRouter(services.RouterConfig{
		Log:      log,
		Session:  sess,
		Prefs:    preferences,
		BusCfg:   busConfig,
		Main:     mainTarget,
		Terminal: terminalTarget,
		Merge:    mergeService,
		Runtime:  runtimeService,
		Dispatch: dispatcher,
	})

	// Seed
	simConfig, err := services.LoadSimulationConfig(simConfigPath)
	if err != nil {
		log.Warn("Simulation config load failed, stores stay unseeded", "error", err)
	} else {
		if err := seedService.Seed(ctx, mainTarget, simConfig); err != nil {
			log.Error("Main store seed failed", "error", err)
			os.Exit(1)
		}
		if err := seedService.Seed(ctx, terminalTarget, simConfig); err != nil {
			log.Error("Terminal store seed failed", "error", err)
			os.Exit(1)
		}
	}

	// Entering a mode pulls the full state for the store that mode reads
	// from. PLACE_GROUP reads the main store by group; every other mode
	// reads the terminal store by species.
	sess.OnEnter(session.ModePlaceGroup, func() {
		if err := observationService.RequestGroupNotes(ctx, mainTarget); err != nil {
			log.Warn("Group notes refresh skipped", "error", err)
		}
	})
	refreshSpecies := func() {
		if err := observationService.RequestSpeciesNotes(ctx, terminalTarget); err != nil {
			log.Warn("Species notes refresh skipped", "error", err)
		}
	}
	sess.OnEnter(session.ModeObjectGroup, refreshSpecies)
	sess.OnEnter(session.ModeCloudGroup, refreshSpecies)
	sess.OnEnter(session.ModePlaceTerminal, refreshSpecies)

	// Handlers
	log.Info("Setting up handlers from main...")
	runtimeHandler := handlers.NewRuntimeHandler(log, mainTarget, terminalTarget, runtimeService)
	observationHandler := handlers.NewObservationHandler(log, mainTarget, terminalTarget, observationService)
	syncHandler := handlers.NewSyncHandler(log, sess, mainTarget, terminalTarget, observationService, dispatcher)

	// Router
	log.Info("Setting up router from main...")
	engine := server.NewRouter(server.RouterConfig{
		Log:                log,
		RuntimeHandler:     runtimeHandler,
		ObservationHandler: observationHandler,
		SyncHandler:        syncHandler,
	})

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return dispatcher.Run(groupCtx)
	})

	group.Go(func() error {
		return messageBus.StartForwarder(groupCtx, router.Handle)
	})

	httpServer := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: engine}
	group.Go(func() error {
		log.Info("Server listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	// Kick off provisioning: the current-run response advances the login
	// chain through roster, activity, and channel list.
	dispatcher.QueryCurrentRun()
	dispatcher.QuerySpeciesNames()

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("Shutdown complete")
}
