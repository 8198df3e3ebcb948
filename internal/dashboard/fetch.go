// Package dashboard collects and prints an overview of the user's favorite
// apps: formation, last release, router metrics and recent errors.
package dashboard

import (
	"context"
	"fmt"
	"herokuPlugins/internal/api"
	"herokuPlugins/internal/logging"
	"herokuPlugins/internal/models"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	metricsWindow = 24 * time.Hour
	isoMillis     = "2006-01-02T15:04:05.000Z"
)

// Hosts are the API hosts the dashboard reads from besides the main API.
type Hosts struct {
	Longboard string
	Metrics   string
	Telex     string
}

// Data is everything Render needs.
type Data struct {
	Favorites     []string
	Apps          []models.DashboardApp
	Orgs          []models.Organization
	Notifications []models.Notification
}

// Fetcher loads dashboard data.
type Fetcher struct {
	Client *api.Client
	Hosts  Hosts
	Logger *zap.Logger
}

// Fetch loads favorites, then apps, organizations and notifications in
// parallel, then the last 24h of metrics ending at now. Failures of the
// pipeline coupling or any metrics request only leave that part empty.
func (f *Fetcher) Fetch(ctx context.Context, now time.Time) (*Data, error) {
	logger := logging.OrNop(f.Logger)

	var favorites []models.FavoriteApp
	err := f.Client.Request(ctx, api.RequestOptions{
		Host:    f.Hosts.Longboard,
		Path:    "/favorites",
		Headers: map[string]string{"Range": ""},
	}, &favorites)
	if err != nil {
		return nil, fmt.Errorf("failed to load favorite apps: %w", err)
	}

	data := &Data{
		Favorites: make([]string, len(favorites)),
		Apps:      make([]models.DashboardApp, len(favorites)),
	}
	for i, fav := range favorites {
		data.Favorites[i] = fav.AppName
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return f.Client.Get(gctx, "/organizations", &data.Orgs)
	})
	g.Go(func() error {
		return f.Client.Request(gctx, api.RequestOptions{
			Host: f.Hosts.Telex,
			Path: "/user/notifications",
		}, &data.Notifications)
	})
	for i, name := range data.Favorites {
		app := &data.Apps[i]
		g.Go(func() error {
			return f.Client.Get(gctx, "/apps/"+name, &app.App)
		})
		g.Go(func() error {
			return f.Client.Get(gctx, "/apps/"+name+"/formation", &app.Formation)
		})
		g.Go(func() error {
			var coupling models.PipelineCoupling
			if err := f.Client.Get(gctx, "/apps/"+name+"/pipeline-couplings", &coupling); err != nil {
				logger.Debug("No pipeline coupling", zap.String("app", name), zap.Error(err))
				return nil
			}
			app.Pipeline = &coupling
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	f.fetchMetrics(ctx, data.Apps, now)
	return data, nil
}

func (f *Fetcher) fetchMetrics(ctx context.Context, apps []models.DashboardApp, now time.Time) {
	window := fmt.Sprintf("start_time=%s&end_time=%s&step=1h",
		now.Add(-metricsWindow).UTC().Format(isoMillis), now.UTC().Format(isoMillis))

	var g errgroup.Group
	for i := range apps {
		app := &apps[i]
		name := app.App.Name
		if name == "" {
			continue
		}

		app.Metrics.DynoErrors = make([]*models.Series, len(app.Formation))
		for j, proc := range app.Formation {
			g.Go(func() error {
				app.Metrics.DynoErrors[j] = f.series(ctx,
					fmt.Sprintf("/apps/%s/formation/%s/metrics/errors?%s", name, proc.Type, window))
				return nil
			})
		}

		if len(app.Formation) == 0 {
			continue
		}
		processType := app.Formation[0].Type
		router := func(metric string, dst **models.Series) {
			g.Go(func() error {
				*dst = f.series(ctx,
					fmt.Sprintf("/apps/%s/router-metrics/%s?%s&process_type=%s", name, metric, window, processType))
				return nil
			})
		}
		router("latency", &app.Metrics.RouterLatency)
		router("errors", &app.Metrics.RouterErrors)
		router("status", &app.Metrics.RouterStatus)
	}
	// series swallows its own errors, so Wait only blocks.
	g.Wait()
}

// series returns nil when the metrics API fails.
func (f *Fetcher) series(ctx context.Context, path string) *models.Series {
	var s models.Series
	err := f.Client.Request(ctx, api.RequestOptions{
		Host:    f.Hosts.Metrics,
		Path:    path,
		Headers: map[string]string{"Range": ""},
	}, &s)
	if err != nil {
		logging.OrNop(f.Logger).Debug("Metrics unavailable", zap.String("path", path), zap.Error(err))
		return nil
	}
	return &s
}
