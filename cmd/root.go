package cmd

import (
	"context"
	"fmt"
	log2 "log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"emperror.dev/errors"
	"github.com/NYTimes/logrotate"
	"github.com/apex/log"
	"github.com/apex/log/handlers/multi"
	"github.com/go-co-op/gocron/v2"
	"github.com/mitchellh/colorstring"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/priyxstudio/sgo/config"
	"github.com/priyxstudio/sgo/events"
	"github.com/priyxstudio/sgo/internal/database"
	"github.com/priyxstudio/sgo/internal/models"
	"github.com/priyxstudio/sgo/loggers/cli"
	"github.com/priyxstudio/sgo/modules"
	"github.com/priyxstudio/sgo/modules/discovery"
	"github.com/priyxstudio/sgo/ratelimit"
	"github.com/priyxstudio/sgo/router"
	"github.com/priyxstudio/sgo/router/middleware"
	"github.com/priyxstudio/sgo/system"
)

var (
	configPath = config.DefaultLocation
	debug      = false
)

var rootCommand = &cobra.Command{
	Use:   "sgo",
	Short: "Runs the SGO module chassi and its HTTP API.",
	PreRun: func(cmd *cobra.Command, args []string) {
		initConfig()
		initLogging()
	},
	Run: rootCmdRun,
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Prints the current executable version and exits.",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Printf("sgo v%s\nCopyright © 2024 - %d SGO contributors\n", system.Version, time.Now().Year())
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCommand.Execute(); err != nil {
		log2.Fatalf("failed to execute command: %s", err)
	}
}

func init() {
	rootCommand.PersistentFlags().StringVar(&configPath, "config", config.DefaultLocation, "set the location for the configuration file")
	rootCommand.PersistentFlags().BoolVar(&debug, "debug", false, "pass in order to run sgo in debug mode")

	rootCommand.AddCommand(versionCommand)
	rootCommand.AddCommand(newConfigureCommand())
	rootCommand.AddCommand(newDiagnosticsCommand())
	rootCommand.AddCommand(newModuleCommand())
	rootCommand.AddCommand(newUserCommand())
}

func rootCmdRun(cmd *cobra.Command, _ []string) {
	printLogo()
	log.Debug("running in debug mode")
	log.WithField("config_file", configPath).Info("loading configuration from file")

	if err := config.ConfigureDirectories(); err != nil {
		log.WithField("error", err).Fatal("failed to configure system directories for sgo")
		return
	}
	if err := config.EnableLogRotation(); err != nil {
		log.WithField("error", err).Fatal("failed to configure log rotation on the system")
		return
	}
	if err := config.EnsureJwtSecret(); err != nil {
		log.WithField("error", err).Fatal("failed to configure session signing")
		return
	}
	if err := database.Initialize(); err != nil {
		log.WithField("error", err).Fatal("failed to initialize database")
		return
	}
	defer database.Close()

	cfg := config.Get()
	log.WithFields(log.Fields{"dialect": cfg.Database.Dialect, "environment": cfg.Environment}).Info("configured system database")

	services := newServices(cfg)
	if err := seedAdmin(cmd.Context(), cfg); err != nil {
		log.WithField("error", err).Error("failed to seed the initial administrator")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.DiscoveryActive() {
		services.Discovery = discovery.New(services.Registry, discovery.OptionsFromConfig(cfg.Discovery))
		if err := services.Discovery.Start(ctx); err != nil {
			log.WithField("error", err).Fatal("failed to start dev module discovery")
			return
		}
		defer services.Discovery.Stop()
	} else {
		log.Info("dev module discovery is disabled in this environment")
	}

	s, err := newScheduler(services.Installer)
	if err != nil {
		log.WithField("error", err).Fatal("failed to initialize cron system")
		return
	}
	s.Start()
	defer func() { _ = s.Shutdown() }()

	srv := &http.Server{
		Addr:      fmt.Sprintf("%s:%d", cfg.Api.Host, cfg.Api.Port),
		Handler:   router.Configure(services),
		TLSConfig: config.DefaultTLSConfig,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(log.Fields{
			"use_ssl": cfg.Api.Ssl.Enabled,
			"host":    cfg.Api.Host,
			"port":    cfg.Api.Port,
		}).Info("configuring internal webserver")

		var err error
		if cfg.Api.Ssl.Enabled {
			err = srv.ListenAndServeTLS(cfg.Api.Ssl.CertificateFile, cfg.Api.Ssl.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down internal webserver")
		sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer scancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.WithField("error", err).Error("internal webserver stopped unexpectedly")
	}
}

// newServices wires the long lived services used by the HTTP API.
func newServices(cfg *config.Configuration) *middleware.Services {
	db, dialect := database.Instance(), database.CurrentDialect()
	bus := events.NewBus()
	registry := modules.NewRegistry(db, dialect, bus)
	return &middleware.Services{
		DB:        db,
		Registry:  registry,
		Installer: modules.NewInstaller(cfg.Modules.Directory, cfg.System.TmpDirectory, registry, modules.NewMigrationRunner(db, dialect, cfg.Modules.TransactionalMigrations), newRemoteClient(cfg)),
		Config:    modules.NewConfigStore(db, dialect),
		Data:      modules.NewDataStore(db),
		Events:    bus,
		Throttle:  ratelimit.FromConfig(cfg.Throttles),
	}
}

// newScheduler registers the housekeeping jobs.
func newScheduler(installer *modules.Installer) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	_, err = s.NewJob(
		gocron.DurationJob(15*time.Minute),
		gocron.NewTask(func() {
			n, err := installer.SweepTemp(time.Hour)
			if err != nil {
				log.WithField("error", err).Warn("failed to sweep temporary archives")
				return
			}
			if n > 0 {
				log.WithField("removed", n).Info("removed stale temporary archives")
			}
		}),
		gocron.WithName("temp-sweeper"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// seedAdmin creates the first administrator from the configured credentials
// when no users exist yet.
func seedAdmin(ctx context.Context, cfg *config.Configuration) error {
	if cfg.Auth.AdminEmail == "" || cfg.Auth.AdminPassword == "" {
		return nil
	}
	db := database.Instance().WithContext(ctx)
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil || count > 0 {
		return err
	}
	u, err := createUser(ctx, db, cfg.Auth.AdminEmail, "Administrator", cfg.Auth.AdminPassword, models.UserRoleAdmin)
	if err != nil {
		return err
	}
	log.WithField("email", u.Email).Info("created initial administrator account")
	return nil
}

// initConfig reads the configuration file and the environment into the
// global configuration.
func initConfig() {
	if err := config.LoadDotEnv(); err != nil {
		log2.Fatalf("sgo: failed to load environment file: %s", err)
	}
	if !filepath.IsAbs(configPath) {
		if d, err := filepath.Abs(configPath); err == nil {
			configPath = d
		}
	}
	if err := config.FromFile(configPath); err != nil {
		log2.Fatalf("sgo: failed to load configuration: %s", err)
	}
	if debug {
		config.SetDebugViaFlag(debug)
	}
}

// initLogging writes to the terminal and to <log_directory>/sgo.log. The file
// is reopened on SIGHUP so logrotate can move it away.
func initLogging() {
	dir := config.Get().System.LogDirectory
	if err := os.MkdirAll(dir, 0o700); err != nil {
		log2.Fatalf("sgo: failed to create log directory: %s", err)
	}
	p := filepath.Join(dir, "sgo.log")
	w, err := logrotate.NewFile(p)
	if err != nil {
		log2.Fatalf("sgo: failed to open process log file: %s", err)
	}

	if config.Get().Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	log.SetHandler(multi.New(cli.Default, cli.New(w.File, false)))
	log.WithField("path", p).Info("writing log files to disk")
}

func printLogo() {
	fmt.Println()
	fmt.Println(colorstring.Color(`[bold][blue]   _____  ______  ____
  / ___/ / ____/ / __ \
  \__ \ / / __  / / / /
 ___/ // /_/ / / /_/ /
/____/ \____/  \____/[reset]`))
	fmt.Println(colorstring.Color("[bold]  module chassi v" + system.Version + "[reset]"))
	fmt.Println(colorstring.Color("  listening on [cyan]" + config.Get().Api.Host + ":" + strconv.Itoa(config.Get().Api.Port) + "[reset]"))
	fmt.Println()
}
