package main

import (
	"context"
	"herokuPlugins/internal/apperror"
	"herokuPlugins/internal/dashboard"
	"herokuPlugins/internal/enterprise"
	"herokuPlugins/internal/ui"
	"time"
)

func runDashboard(ctx context.Context, e *env, args []string) (int, error) {
	fs := newFlagSet("dashboard", e)
	if err := fs.Parse(args); err != nil {
		return 1, err
	}

	client, err := newAPIClient(e)
	if err != nil {
		return 1, err
	}

	ctx, cancel := signalContext(ctx)
	defer cancel()

	fetcher := &dashboard.Fetcher{
		Client: client,
		Hosts: dashboard.Hosts{
			Longboard: e.cfg.LongboardHost,
			Metrics:   e.cfg.MetricsHost,
			Telex:     e.cfg.TelexHost,
		},
		Logger: e.logger,
	}

	now := time.Now()
	var data *dashboard.Data
	err = ui.Action(ctx, e.stderr, "Loading", ui.ActionOptions{Clear: true}, func(ctx context.Context) error {
		var err error
		data, err = fetcher.Fetch(ctx, now)
		return err
	})
	if err != nil {
		return 1, err
	}

	dashboard.Render(e.stdout, e.stderr, data, dashboard.Options{Now: now})
	return 0, nil
}

func runMembersRemove(ctx context.Context, e *env, args []string) (int, error) {
	var account string
	fs := newFlagSet("enterprises:members:remove", e)
	fs.StringVarP(&account, "enterprise-account", "e", "", "enterprise account name (required)")
	if err := fs.Parse(args); err != nil {
		return 1, err
	}
	if fs.NArg() != 1 {
		return 1, apperror.New(apperror.ValidationError, "expected exactly one EMAIL argument", nil)
	}

	client, err := newAPIClient(e)
	if err != nil {
		return 1, err
	}

	ctx, cancel := signalContext(ctx)
	defer cancel()

	if err := enterprise.RemoveMember(ctx, client, e.stderr, account, fs.Arg(0)); err != nil {
		return 1, err
	}
	return 0, nil
}
