package cli

import (
	"context"
	"log/slog"

	"expensedash/internal/amqp"
	"expensedash/internal/backend"
	"expensedash/internal/config"
	"expensedash/internal/core"
	"expensedash/internal/dashboard"
	"expensedash/internal/log"
	"expensedash/internal/receipts"
	"expensedash/internal/store"
)

// app carries what every command needs once configuration is loaded.
type app struct {
	cfg       *config.Config
	logger    *log.Logger
	connector *backend.Connector
	notifier  *amqp.Client
	closers   []func() error
}

func newApp(cfg *config.Config, logger *log.Logger) (*app, error) {
	if err := store.ValidateCollection(cfg.Collection); err != nil {
		return nil, err
	}
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:       cfg,
		logger:    logger,
		connector: backend.NewConnector(backend.NewFactory(logger.Logger), bcfg),
	}, nil
}

// gateway connects to the configured store on first use.
func (a *app) gateway(ctx context.Context) (store.Gateway, error) {
	res, err := a.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return res.Gateway, nil
}

// controller wires the dashboard controller over the store. With AMQP
// configured, writes are broadcast to other processes; a broker that cannot
// be reached only disables the broadcast.
func (a *app) controller(ctx context.Context) (*dashboard.Controller, *dashboard.Snapshots, error) {
	gw, err := a.gateway(ctx)
	if err != nil {
		return nil, nil, err
	}
	snapshots := dashboard.NewSnapshots(gw, a.cfg.CacheTTL)

	var notifier dashboard.Notifier
	if a.cfg.AMQPURL != "" && a.notifier == nil {
		client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange)
		if err != nil {
			slog.WarnContext(ctx, "AMQP unavailable, cross-process invalidation disabled",
				"component", log.ComponentAMQP,
				"error", err)
		} else {
			a.notifier = client
			a.closers = append(a.closers, client.Close)
		}
	}
	if a.notifier != nil {
		notifier = a.notifier
	}
	return dashboard.New(gw, snapshots, dashboard.CollectionKey(a.cfg.Collection), notifier), snapshots, nil
}

// uploader returns nil when receipt storage is disabled.
func (a *app) uploader(ctx context.Context) (*receipts.Uploader, error) {
	switch a.cfg.ReceiptsBackend {
	case "local":
		s, err := receipts.NewLocalStore(a.cfg.ReceiptsDir)
		if err != nil {
			return nil, core.E(core.KindConfiguration, "receipts", err)
		}
		return receipts.NewUploader(s, a.cfg.Collection), nil
	case "gcs":
		s, err := receipts.NewGCSStore(ctx, a.cfg.GCSBucket, a.cfg.GCSCredentialsJSON)
		if err != nil {
			return nil, core.E(core.KindConnection, "receipts", err)
		}
		a.closers = append(a.closers, s.Close)
		return receipts.NewUploader(s, a.cfg.Collection), nil
	}
	return nil, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Close failed", "error", err)
		}
	}
	if err := a.connector.Close(); err != nil {
		a.logger.Warn("Backend close failed", "error", err)
	}
}
