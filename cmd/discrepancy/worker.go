package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/BearBump/CarrierBox/config"
	"github.com/BearBump/CarrierBox/internal/broker/kafka"
	"github.com/BearBump/CarrierBox/internal/broker/messages"
	"github.com/BearBump/CarrierBox/internal/cache/rediscache"
	"github.com/BearBump/CarrierBox/internal/models"
	"github.com/BearBump/CarrierBox/internal/services/discrepancy"
	"github.com/BearBump/CarrierBox/internal/storage/pgreports"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

const dedupTTL = 24 * time.Hour

type reportStore interface {
	SaveDiscrepancies(ctx context.Context, batchID string, ds []models.Discrepancy) (int, error)
}

type deduper interface {
	FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error
}

type lineItemConsumer interface {
	Consume(ctx context.Context, handler func(msg kafka.Message) error) error
}

// lineItemHandler pairs billing lines as they arrive and stores the
// discrepancies of every completed pair.
type lineItemHandler struct {
	matcher *discrepancy.Matcher
	store   reportStore
	dedup   deduper

	processed atomic.Int64
	skipped   atomic.Int64
	stored    atomic.Int64
}

type workerStats struct {
	Processed       int64 `json:"processed"`
	Skipped         int64 `json:"skipped"`
	Stored          int64 `json:"stored"`
	PendingInvoices int   `json:"pendingInvoices"`
	PendingCharges  int   `json:"pendingCharges"`
}

func (h *lineItemHandler) Stats() workerStats {
	inv, chg := h.matcher.Pending()
	return workerStats{
		Processed:       h.processed.Load(),
		Skipped:         h.skipped.Load(),
		Stored:          h.stored.Load(),
		PendingInvoices: inv,
		PendingCharges:  chg,
	}
}

// Handle never fails on a malformed message: it is logged and skipped so one
// bad line does not block the partition. Storage failures are returned.
// Redeliveries are recognised by the kafka message identity; two lines with
// the same tracking number are both paired.
func (h *lineItemHandler) Handle(ctx context.Context, km kafka.Message) error {
	var msg messages.LineItemReceived
	if err := json.Unmarshal(km.Value, &msg); err != nil {
		h.skipped.Add(1)
		slog.Warn("skip malformed line item", "err", err)
		return nil
	}
	item, err := discrepancy.FromMessage(msg)
	if err != nil {
		h.skipped.Add(1)
		slog.Warn("skip invalid line item", "batch", msg.BatchID, "err", err)
		return nil
	}

	key := km.ID()
	if h.dedup != nil {
		first, err := h.dedup.FirstSeen(ctx, key, dedupTTL)
		if err != nil {
			slog.Warn("dedup unavailable", "err", err)
		} else if !first {
			h.skipped.Add(1)
			return nil
		}
	}
	h.processed.Add(1)

	var (
		ds      []models.Discrepancy
		matched bool
	)
	if msg.Kind == messages.LineItemInvoice {
		ds, matched = h.matcher.AddInvoice(msg.BatchID, item)
	} else {
		ds, matched = h.matcher.AddCharge(msg.BatchID, item)
	}
	if !matched || len(ds) == 0 {
		return nil
	}

	n, err := h.store.SaveDiscrepancies(ctx, msg.BatchID, ds)
	if err != nil {
		if h.dedup != nil {
			_ = h.dedup.Forget(ctx, key)
		}
		return errors.Wrap(err, "save discrepancies")
	}
	h.stored.Add(int64(n))
	slog.Info("discrepancies stored", "batch", msg.BatchID, "trackingNumber", item.TrackingNumber, "count", n)
	return nil
}

func runWorker(ctx context.Context, consumer lineItemConsumer, h *lineItemHandler) error {
	err := consumer.Consume(ctx, func(msg kafka.Message) error {
		return h.Handle(ctx, msg)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

type workerFactories struct {
	newStorage  func(cfg *config.Config) (store reportStore, closeFn func(), err error)
	newConsumer func(cfg *config.Config, topic, group string) (c lineItemConsumer, closeFn func())
	// newDeduper returns nil when redis is not configured.
	newDeduper func(cfg *config.Config) (d deduper, closeFn func())
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (reportStore, func(), error) {
			st, err := pgreports.New(cfg.Database.PostgresConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newConsumer: func(cfg *config.Config, topic, group string) (lineItemConsumer, func()) {
			c := kafka.NewConsumer(cfg.Kafka.Brokers(), topic, group)
			return c, func() { _ = c.Close() }
		},
		newDeduper: func(cfg *config.Config) (deduper, func()) {
			addr := cfg.Redis.Addr()
			if addr == "" {
				return nil, nil
			}
			d := rediscache.NewDeduper(addr, "carrierbox:lineitem:")
			return d, func() { _ = d.Close() }
		},
	}
}

type workerOpts struct {
	httpAddr string
	onListen func(httpAddr string)
}

// runDiscrepancyWorker consumes line items until ctx is done. With an
// httpAddr the ops endpoints are served alongside.
func runDiscrepancyWorker(ctx context.Context, cfg *config.Config, f workerFactories, opts workerOpts) error {
	if len(cfg.Kafka.Brokers()) == 0 {
		return errors.New("kafka.host is required for the worker")
	}
	topic := cfg.Kafka.LineItemsTopicName
	if topic == "" {
		topic = "billing.line_items"
	}
	group := cfg.CarrierBox.DiscrepancyConsumerGroup
	if group == "" {
		group = "carrierbox-discrepancy"
	}

	st, closeStore, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	h := &lineItemHandler{matcher: discrepancy.NewMatcher(), store: st}
	if d, closeDedup := f.newDeduper(cfg); d != nil {
		h.dedup = d
		if closeDedup != nil {
			defer closeDedup()
		}
	}

	consumer, closeConsumer := f.newConsumer(cfg, topic, group)
	if closeConsumer != nil {
		defer closeConsumer()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpErr := make(chan error, 1)
	if opts.httpAddr != "" {
		go func() {
			httpErr <- runWorkerHTTPServer(ctx, workerHTTPOpts{
				httpAddr: opts.httpAddr,
				onListen: opts.onListen,
				stats:    h.Stats,
				topic:    topic,
				group:    group,
			})
		}()
	}

	slog.Info("discrepancy worker started", "topic", topic, "group", group, "dedup", h.dedup != nil)
	workerErr := make(chan error, 1)
	go func() { workerErr <- runWorker(ctx, consumer, h) }()

	select {
	case err := <-workerErr:
		return err
	case err := <-httpErr:
		cancel()
		<-workerErr
		return errors.Wrap(err, "worker http server")
	}
}

func workerCommand() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Consume billing line items from kafka and store discrepancies in postgres",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "http-addr",
				Usage: "listen address for /healthz and /stats, empty disables",
				Value: ":8082",
			},
		},
		Action: func(c *cli.Context) error {
			cfgPath := c.String("config")
			if cfgPath == "" {
				return errors.New("worker needs --config (or configPath env var)")
			}
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runDiscrepancyWorker(ctx, cfg, defaultWorkerFactories(), workerOpts{httpAddr: c.String("http-addr")})
		},
	}
}
