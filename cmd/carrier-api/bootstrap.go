package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/CarrierBox/config"
	"github.com/BearBump/CarrierBox/internal/broker/kafka"
	"github.com/BearBump/CarrierBox/internal/cache/rediscache"
	"github.com/BearBump/CarrierBox/internal/metrics"
	"github.com/BearBump/CarrierBox/internal/models"
	"github.com/BearBump/CarrierBox/internal/services/integration"
	"github.com/BearBump/CarrierBox/internal/storage/shippingdb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type carrierAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   carrierAPIOpts
	svc    *integration.Service
	reg    *prometheus.Registry

	closers []func() error
}

func mustBootstrapCarrierAPI() *carrierAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("config parse error, %v", err))
	}

	app := newCarrierAPIApp(cfg, swaggerPath)
	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return app
}

// newCarrierAPIApp wires the store, facade and optional adapters. Redis and
// kafka are skipped when their host is empty.
func newCarrierAPIApp(cfg *config.Config, swaggerPath string) *carrierAPIApp {
	httpAddr := cfg.CarrierBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	tokenTTL := time.Duration(cfg.CarrierBox.TokenTTLSeconds) * time.Second
	if tokenTTL <= 0 {
		tokenTTL = shippingdb.DefaultTokenTTL
	}
	loginLimit := int64(cfg.CarrierBox.LoginRateLimitPerMinute)
	if loginLimit <= 0 {
		loginLimit = 10
	}
	topics := integration.Topics{
		ShipmentCreated: cfg.Kafka.ShipmentCreatedTopicName,
		LabelCreated:    cfg.Kafka.LabelCreatedTopicName,
	}
	if topics.ShipmentCreated == "" {
		topics.ShipmentCreated = "shipment.created"
	}
	if topics.LabelCreated == "" {
		topics.LabelCreated = "label.created"
	}

	store := shippingdb.New(seedUsers(cfg.CarrierBox.Users)).WithTokenTTL(tokenTTL)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	metrics.RegisterStoreGauges(reg, func() metrics.StoreStats {
		st := store.Stats()
		return metrics.StoreStats{LiveTokens: st.LiveTokens, Shipments: st.Shipments, Labels: st.Labels}
	})

	app := &carrierAPIApp{reg: reg}
	svc := integration.New(store).WithMetrics(m)

	if addr := cfg.Redis.Addr(); addr != "" {
		rl := rediscache.NewRateLimiter(addr)
		svc = svc.WithLoginRateLimit(rl, loginLimit)
		app.closers = append(app.closers, rl.Close)
		slog.Info("login rate limit enabled", "redis", addr, "perMinute", loginLimit)
	}
	if brokers := cfg.Kafka.Brokers(); len(brokers) > 0 {
		producer := kafka.NewProducer(brokers)
		svc = svc.WithEvents(producer, topics)
		app.closers = append(app.closers, producer.Close)
		slog.Info("domain events enabled", "brokers", brokers, "shipmentTopic", topics.ShipmentCreated, "labelTopic", topics.LabelCreated)
	}

	app.svc = svc
	app.opts = carrierAPIOpts{
		httpAddr:    httpAddr,
		swaggerPath: swaggerPath,
	}
	return app
}

func seedUsers(users []config.UserConfig) []shippingdb.SeedUser {
	out := make([]shippingdb.SeedUser, 0, len(users))
	for _, u := range users {
		out = append(out, shippingdb.SeedUser{
			Credential: models.Credential{UserName: u.Username, Password: u.Password},
			Name:       u.Name,
			Surname:    u.Surname,
		})
	}
	return out
}

func (a *carrierAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, c := range a.closers {
		_ = c()
	}
}

func (a *carrierAPIApp) Run() error {
	return runCarrierAPI(a.ctx, a.opts, a.svc, a.reg)
}
