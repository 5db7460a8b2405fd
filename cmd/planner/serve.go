// cmd/planner/serve.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"home-planner/internal/common/aws"
	"home-planner/internal/common/config"
	"home-planner/internal/common/database"
	"home-planner/internal/common/observability"
	"home-planner/internal/geocode"
	"home-planner/internal/httpapi"
	"home-planner/internal/phases/catalog"
	"home-planner/internal/phases/imagegen"
	"home-planner/internal/phases/report"
	"home-planner/internal/wizard"
)

const (
	shutdownTimeout = 15 * time.Second
	indexTimeout    = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the wizard HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	obs := observability.New(cfg.App.Name, prometheus.DefaultRegisterer, nil)
	defer obs.Shutdown()

	a, err := newApp(ctx, cfg, obs)
	if err != nil {
		return err
	}
	defer a.Close()

	a.log.Info("Starting planner", map[string]interface{}{
		"version":     version,
		"persistence": cfg.Persistence.Driver,
		"addr":        cfg.HTTP.Addr,
	})
	a.wizard.Bootstrap(ctx)

	images := imagegen.NewGenerator(a.cache, a.api, a.wizard.Notifier(), obs, a.log, config.GetDuration(cfg.Cache.Freshness))

	var indexing sync.WaitGroup
	defer indexing.Wait()

	var search catalog.Searcher
	if cfg.Database.Elasticsearch.Enabled {
		idx, err := openSearchIndex(ctx, a)
		if err != nil {
			return err
		}
		search = idx
		a.wizard.Subscribe(func(ev wizard.Event) {
			if ev != wizard.EventRealDataReady {
				return
			}
			result, preview := a.wizard.DataSource()
			if preview {
				return
			}
			indexing.Add(1)
			go func() {
				defer indexing.Done()
				ictx, cancel := context.WithTimeout(context.Background(), indexTimeout)
				defer cancel()
				if err := idx.IndexProducts(ictx, result.ID, result.Products); err != nil {
					a.log.Warn("product indexing failed", map[string]interface{}{
						"planId": result.ID,
						"error":  err.Error(),
					})
				}
			}()
		})
	}

	sharer, err := openSharer(ctx, a)
	if err != nil {
		return err
	}

	server, err := httpapi.New(httpapi.Deps{
		Wizard:   a.wizard,
		Images:   images,
		Sharer:   sharer,
		Search:   search,
		Geocoder: geocode.NewClient(cfg.Geocode),
		Debounce: config.GetDuration(cfg.Geocode.Debounce),
		Gatherer: prometheus.DefaultGatherer,
		Logger:   a.log,
	})
	if err != nil {
		return err
	}
	defer server.Close()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("HTTP server listening", map[string]interface{}{"addr": cfg.HTTP.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("Shutting down...", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openSearchIndex(ctx context.Context, a *app) (*catalog.ESIndex, error) {
	var es *database.ElasticsearchClient
	err := retryWithBackoff(ctx, func() error {
		var err error
		es, err = database.NewElasticsearch(a.cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return es.Ping(ctx)
	}, 5, 2*time.Second, a.log, "Elasticsearch connection")
	if err != nil {
		return nil, err
	}

	idx := catalog.NewESIndex(es.Client, es.Index, a.log)
	if err := idx.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	a.log.Info("Elasticsearch connected successfully", map[string]interface{}{"index": es.Index})
	return idx, nil
}

// openSharer stores shared reports in Postgres when enabled, in memory otherwise,
// and delivers links through whichever of SES and SNS is enabled.
func openSharer(ctx context.Context, a *app) (*report.Sharer, error) {
	cfg := a.cfg
	var store report.ShareStore = report.NewMemoryShareStore()

	if cfg.Database.Postgres.Enabled {
		var pg *database.PostgresClient
		err := retryWithBackoff(ctx, func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 5, 2*time.Second, a.log, "PostgreSQL connection")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg)

		pgStore := report.NewPostgresShareStore(pg)
		if err := pgStore.Migrate(ctx); err != nil {
			return nil, err
		}
		store = pgStore
		a.log.Info("PostgreSQL connected successfully", nil)
	}

	var (
		email report.EmailSender
		sms   report.SMSSender
	)
	awsCfg := cfg.Integrations.AWS
	if awsCfg.SES.Enabled {
		client, err := aws.NewSESClient(ctx, awsCfg.Region, awsCfg.SES.FromEmail)
		if err != nil {
			return nil, err
		}
		email = client
	}
	if awsCfg.SNS.Enabled {
		client, err := aws.NewSNSClient(ctx, awsCfg.Region, awsCfg.SNS.DefaultSMSSenderID)
		if err != nil {
			return nil, err
		}
		sms = client
	}

	return report.NewSharer(store, email, sms, cfg.Integrations.ShareBaseURL, a.log), nil
}
