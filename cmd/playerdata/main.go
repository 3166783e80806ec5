package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"runtime"
	"syscall"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/playerdata/internal/config"
	"github.com/mdouchement/playerdata/internal/database"
	"github.com/mdouchement/playerdata/internal/metrics"
	"github.com/mdouchement/playerdata/internal/scheduler"
	"github.com/mdouchement/playerdata/internal/storage"
	"github.com/mdouchement/playerdata/internal/webserver"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfgfile string
	binding string
	port    string
)

func main() {
	c := &cobra.Command{
		Use:     "playerdata",
		Short:   "Game assets and player scores server",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    cobra.ExactArgs(0),
	}
	c.PersistentFlags().StringVarP(&cfgfile, "config", "c", "", "Configuration file")

	c.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Version for playerdata",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(c.Version)
		},
	})
	c.AddCommand(initCmd)
	c.AddCommand(reindexCmd)
	c.AddCommand(cleanupCmd)

	serverCmd.Flags().StringVarP(&binding, "binding", "b", "", "Server's binding")
	serverCmd.Flags().StringVarP(&port, "port", "p", "", "Server's port")
	c.AddCommand(serverCmd)

	if err := c.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("%+v", err)
	}
}

var (
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Init the databases and the storage",
		Args:  cobra.ExactArgs(0),
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgfile)
			if err != nil {
				return err
			}

			r, err := open(c.Context(), cfg)
			if err != nil {
				return err
			}
			defer r.Close()

			return r.Init(c.Context(), cfg)
		},
	}

	//

	reindexCmd = &cobra.Command{
		Use:   "reindex",
		Short: "Reindex the Storm database",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgfile)
			if err != nil {
				return err
			}
			if !cfg.UseStorm() {
				return errors.New("no Storm database is configured")
			}

			db, err := database.StormOpen(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			if err = database.StormReIndex(db); err != nil {
				return err
			}
			return storage.StormReIndex(db, cfg.Sprites(), cfg.Audio())
		},
	}

	//

	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Remove the orphaned chunks of aborted uploads",
		Args:  cobra.ExactArgs(0),
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgfile)
			if err != nil {
				return err
			}

			r, err := open(c.Context(), cfg)
			if err != nil {
				return err
			}
			defer r.Close()

			sprites, audio := r.Backends(cfg)
			return scheduler.Sweep(c.Context(), newLogger(), sprites, audio)
		},
	}

	//

	serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Start server",
		Args:  cobra.ExactArgs(0),
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgfile)
			if err != nil {
				return err
			}
			if binding != "" {
				cfg.Server.Binding = binding
			}
			if port != "" {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ctrl := webserver.Controller{
				Version:   c.Parent().Version,
				Logger:    newLogger(),
				Gatherer:  prometheus.DefaultGatherer,
				Timeout:   cfg.Database.Timeout,
				BodyLimit: cfg.Server.BodyLimit,
			}

			//

			r, err := open(ctx, cfg)
			if err != nil {
				return err
			}
			defer r.Close()

			ctrl.Database = r.Database(cfg)
			ctrl.Sprites, ctrl.Audio = r.Backends(cfg)

			//

			ctrl.Observer, err = metrics.NewPrometheus(metrics.DefaultNamespace, prometheus.DefaultRegisterer)
			if err != nil {
				return errors.Wrap(err, "could not register metrics")
			}

			//

			cron, err := scheduler.Start(scheduler.Controller{
				Logger:        ctrl.Logger,
				Backends:      []storage.Backend{ctrl.Sprites, ctrl.Audio},
				Specification: cfg.Scheduler.Specification,
			})
			if err != nil {
				return err
			}
			defer cron.Stop()

			//

			engine := webserver.EchoEngine(ctrl)
			webserver.PrintRoutes(engine)

			listen := fmt.Sprintf("%s:%s", cfg.Server.Binding, cfg.Server.Port)
			ctrl.Logger.Infof("Server listening on %s (database: %s, storage: %s)", listen, cfg.Database.Driver, cfg.Storage.Driver)

			errc := make(chan error, 1)
			go func() {
				errc <- engine.Start(listen)
			}()

			select {
			case err = <-errc:
				return errors.Wrap(err, "could not run server")
			case <-ctx.Done():
			}

			ctrl.Logger.Info("Shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			err = engine.Shutdown(sctx)
			if err != nil {
				return errors.Wrap(err, "could not shutdown server")
			}

			if err = <-errc; err != nil && err != http.ErrServerClosed {
				return errors.Wrap(err, "could not run server")
			}
			return nil
		},
	}
)

func newLogger() logger.Logger {
	log := logrus.New()
	log.SetFormatter(&logger.LogrusTextFormatter{
		DisableColors:   false,
		ForceColors:     true,
		ForceFormatting: true,
		PrefixRE:        regexp.MustCompile(`^(\[.*?\])\s`),
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if os.Getenv("PLAYERDATA_DEBUG") != "" {
		log.SetLevel(logrus.DebugLevel)
	}
	return logger.WrapLogrus(log)
}
