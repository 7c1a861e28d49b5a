package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/BearBump/CarrierBox/config"
	"github.com/BearBump/CarrierBox/internal/broker/kafka"
	"github.com/BearBump/CarrierBox/internal/broker/messages"
	"github.com/BearBump/CarrierBox/internal/cache/rediscache"
	"github.com/BearBump/CarrierBox/internal/models"
	"github.com/BearBump/CarrierBox/internal/services/discrepancy"
	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeReportStore struct {
	saved map[string][]models.Discrepancy
	err   error
}

func (f *fakeReportStore) SaveDiscrepancies(_ context.Context, batchID string, ds []models.Discrepancy) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.saved == nil {
		f.saved = map[string][]models.Discrepancy{}
	}
	f.saved[batchID] = append(f.saved[batchID], ds...)
	return len(ds), nil
}

type fakeConsumer struct {
	values [][]byte
}

func (f *fakeConsumer) Consume(ctx context.Context, handler func(msg kafka.Message) error) error {
	for i, v := range f.values {
		if err := handler(kafka.Message{Topic: lineItemsTopic, Offset: int64(i), Value: v}); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return errors.Wrap(ctx.Err(), "fetch message")
}

const lineItemsTopic = "billing.line_items"

// offsets hands out consecutive kafka offsets on one partition.
type offsets struct {
	next int64
}

func (o *offsets) msg(value []byte) kafka.Message {
	m := kafka.Message{Topic: lineItemsTopic, Offset: o.next, Value: value}
	o.next++
	return m
}

func lineItem(t *testing.T, kind messages.LineItemKind, tn, amount, weight string) []byte {
	t.Helper()
	b, err := json.Marshal(messages.LineItemReceived{
		Kind: kind, BatchID: "b1", TrackingNumber: tn, Amount: amount, Weight: weight, Zone: "EU",
	})
	require.NoError(t, err)
	return b
}

func TestLineItemHandler_StoresDiscrepancies(t *testing.T) {
	st := &fakeReportStore{}
	h := &lineItemHandler{matcher: discrepancy.NewMatcher(), store: st}
	ctx := context.Background()
	var o offsets

	require.NoError(t, h.Handle(ctx, o.msg(lineItem(t, messages.LineItemCharge, "T1", "10", "2"))))
	require.Empty(t, st.saved)
	require.NoError(t, h.Handle(ctx, o.msg(lineItem(t, messages.LineItemInvoice, "T1", "12", "2.5"))))

	require.Len(t, st.saved["b1"], 2)
	require.Equal(t, "Amount mismatch for Tracking Number T1: Invoice(12) vs Charge(10)", st.saved["b1"][0].Message)
	require.Equal(t, "b1", st.saved["b1"][1].BatchID)

	// matching pair stores nothing
	require.NoError(t, h.Handle(ctx, o.msg(lineItem(t, messages.LineItemInvoice, "T2", "1", "1"))))
	require.NoError(t, h.Handle(ctx, o.msg(lineItem(t, messages.LineItemCharge, "T2", "1.0", "1"))))
	require.Len(t, st.saved["b1"], 2)
}

func TestLineItemHandler_SkipsPoisonMessages(t *testing.T) {
	st := &fakeReportStore{}
	h := &lineItemHandler{matcher: discrepancy.NewMatcher(), store: st}
	ctx := context.Background()
	var o offsets

	require.NoError(t, h.Handle(ctx, o.msg([]byte("{not json"))))
	require.NoError(t, h.Handle(ctx, o.msg(lineItem(t, messages.LineItemKind("refund"), "T1", "1", "1"))))
	require.NoError(t, h.Handle(ctx, o.msg(lineItem(t, messages.LineItemInvoice, "T1", "ten", "1"))))

	inv, chg := h.matcher.Pending()
	require.Zero(t, inv)
	require.Zero(t, chg)
}

func TestLineItemHandler_Dedup(t *testing.T) {
	mr := miniredis.RunT(t)
	d := rediscache.NewDeduper(mr.Addr(), "test:")
	t.Cleanup(func() { _ = d.Close() })

	st := &fakeReportStore{}
	h := &lineItemHandler{matcher: discrepancy.NewMatcher(), store: st, dedup: d}
	ctx := context.Background()
	var o offsets

	// a redelivery keeps its offset
	inv := o.msg(lineItem(t, messages.LineItemInvoice, "T1", "5", "1"))
	require.NoError(t, h.Handle(ctx, inv))
	require.NoError(t, h.Handle(ctx, inv))
	require.NoError(t, h.Handle(ctx, o.msg(lineItem(t, messages.LineItemCharge, "T1", "4", "1"))))

	require.Len(t, st.saved["b1"], 1)
	pendingInv, pendingChg := h.matcher.Pending()
	require.Zero(t, pendingInv)
	require.Zero(t, pendingChg)
}

func TestLineItemHandler_DedupDownFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	d := rediscache.NewDeduper(mr.Addr(), "test:")
	t.Cleanup(func() { _ = d.Close() })
	mr.Close()

	st := &fakeReportStore{}
	h := &lineItemHandler{matcher: discrepancy.NewMatcher(), store: st, dedup: d}
	ctx := context.Background()
	var o offsets

	require.NoError(t, h.Handle(ctx, o.msg(lineItem(t, messages.LineItemInvoice, "T1", "5", "1"))))
	require.NoError(t, h.Handle(ctx, o.msg(lineItem(t, messages.LineItemCharge, "T1", "4", "1"))))
	require.Len(t, st.saved["b1"], 1)
}

func TestLineItemHandler_SaveErrorForgetsKey(t *testing.T) {
	mr := miniredis.RunT(t)
	d := rediscache.NewDeduper(mr.Addr(), "test:")
	t.Cleanup(func() { _ = d.Close() })

	st := &fakeReportStore{err: errors.New("db down")}
	h := &lineItemHandler{matcher: discrepancy.NewMatcher(), store: st, dedup: d}
	ctx := context.Background()
	var o offsets

	require.NoError(t, h.Handle(ctx, o.msg(lineItem(t, messages.LineItemInvoice, "T1", "5", "1"))))
	charge := o.msg(lineItem(t, messages.LineItemCharge, "T1", "4", "1"))
	err := h.Handle(ctx, charge)
	require.ErrorContains(t, err, "save discrepancies")
	require.Len(t, mr.Keys(), 1)

	ok, err := d.FirstSeen(ctx, charge.ID(), dedupTTL)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRunWorker_StopsOnCancel(t *testing.T) {
	st := &fakeReportStore{}
	h := &lineItemHandler{matcher: discrepancy.NewMatcher(), store: st}
	c := &fakeConsumer{values: [][]byte{
		lineItem(t, messages.LineItemInvoice, "T1", "5", "1"),
		lineItem(t, messages.LineItemCharge, "T1", "4", "1"),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runWorker(ctx, c, h) }()
	cancel()

	require.NoError(t, <-done)
	require.Len(t, st.saved["b1"], 1)
}

func TestRunWorker_HandlerError(t *testing.T) {
	st := &fakeReportStore{err: errors.New("db down")}
	h := &lineItemHandler{matcher: discrepancy.NewMatcher(), store: st}
	c := &fakeConsumer{values: [][]byte{
		lineItem(t, messages.LineItemInvoice, "T1", "5", "1"),
		lineItem(t, messages.LineItemCharge, "T1", "4", "1"),
	}}

	err := runWorker(context.Background(), c, h)
	require.ErrorContains(t, err, "db down")
}

func TestWorkerCommand_NeedsConfig(t *testing.T) {
	t.Setenv("configPath", "")
	_, _, err := runApp(t, "worker")
	require.ErrorContains(t, err, "worker needs --config")
}

func TestDefaultWorkerFactories(t *testing.T) {
	f := defaultWorkerFactories()

	d, closeFn := f.newDeduper(&config.Config{})
	require.Nil(t, d)
	require.Nil(t, closeFn)

	mr := miniredis.RunT(t)
	d, closeFn = f.newDeduper(&config.Config{Redis: config.RedisConfig{Host: mr.Host(), Port: mustAtoi(t, mr.Port())}})
	require.NotNil(t, d)
	closeFn()

	c, closeFn := f.newConsumer(&config.Config{Kafka: config.KafkaConfig{Host: "localhost", Port: 9092}}, "t", "g")
	require.NotNil(t, c)
	closeFn()
}

func TestRunDiscrepancyWorker_NeedsKafka(t *testing.T) {
	err := runDiscrepancyWorker(context.Background(), &config.Config{}, workerFactories{}, workerOpts{})
	require.ErrorContains(t, err, "kafka.host is required")
}

func TestRunDiscrepancyWorker_ServesStats(t *testing.T) {
	st := &fakeReportStore{}
	var storeClosed, consumerClosed bool
	var gotTopic, gotGroup string

	f := workerFactories{
		newStorage: func(cfg *config.Config) (reportStore, func(), error) {
			return st, func() { storeClosed = true }, nil
		},
		newConsumer: func(cfg *config.Config, topic, group string) (lineItemConsumer, func()) {
			gotTopic, gotGroup = topic, group
			return &fakeConsumer{values: [][]byte{
				lineItem(t, messages.LineItemInvoice, "T1", "5", "1"),
				lineItem(t, messages.LineItemCharge, "T1", "4", "1"),
				lineItem(t, messages.LineItemCharge, "T2", "4", "1"),
				[]byte("junk"),
			}}, func() { consumerClosed = true }
		},
		newDeduper: func(cfg *config.Config) (deduper, func()) { return nil, nil },
	}
	cfg := &config.Config{Kafka: config.KafkaConfig{Host: "localhost", Port: 9092}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addrCh := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- runDiscrepancyWorker(ctx, cfg, f, workerOpts{
			httpAddr: "127.0.0.1:0",
			onListen: func(addr string) { addrCh <- addr },
		})
	}()

	var addr string
	select {
	case addr = <-addrCh:
	case <-time.After(5 * time.Second):
		t.Fatal("worker http server did not start")
	}

	var stats workerStats
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/stats")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
			return false
		}
		return stats.Processed == 3 && stats.Skipped == 1
	}, 5*time.Second, 20*time.Millisecond)
	require.Equal(t, workerStats{Processed: 3, Skipped: 1, Stored: 1, PendingCharges: 1}, stats)

	resp, err := http.Get("http://" + addr + "/config")
	require.NoError(t, err)
	var cfgOut map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfgOut))
	_ = resp.Body.Close()
	require.Equal(t, "billing.line_items", cfgOut["topic"])

	cancel()
	require.NoError(t, <-done)
	require.True(t, storeClosed)
	require.True(t, consumerClosed)
	require.Equal(t, "billing.line_items", gotTopic)
	require.Equal(t, "carrierbox-discrepancy", gotGroup)
}

func TestRunDiscrepancyWorker_StorageError(t *testing.T) {
	f := workerFactories{
		newStorage: func(cfg *config.Config) (reportStore, func(), error) {
			return nil, nil, errors.New("pg down")
		},
	}
	cfg := &config.Config{Kafka: config.KafkaConfig{Host: "localhost", Port: 9092}}
	err := runDiscrepancyWorker(context.Background(), cfg, f, workerOpts{})
	require.ErrorContains(t, err, "pg down")
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	require.NoError(t, err)
	return n
}

func TestLineItemHandler_RepeatedTrackingNumberWithDedup(t *testing.T) {
	mr := miniredis.RunT(t)
	d := rediscache.NewDeduper(mr.Addr(), "test:")
	t.Cleanup(func() { _ = d.Close() })

	invoices := []discrepancy.LineItem{
		{TrackingNumber: "T1", Amount: 10, Weight: 1, Zone: "EU"},
		{TrackingNumber: "T1", Amount: 20, Weight: 2, Zone: "EU"},
	}
	charges := []discrepancy.LineItem{
		{TrackingNumber: "T1", Amount: 11, Weight: 1, Zone: "EU"},
		{TrackingNumber: "T1", Amount: 25, Weight: 2, Zone: "EU"},
	}
	want := discrepancy.Reconcile(invoices, charges)
	require.Equal(t, 2, want.Matched)
	require.Len(t, want.Discrepancies, 2)

	st := &fakeReportStore{}
	h := &lineItemHandler{matcher: discrepancy.NewMatcher(), store: st, dedup: d}
	ctx := context.Background()
	var o offsets
	for _, m := range []kafka.Message{
		o.msg(lineItem(t, messages.LineItemInvoice, "T1", "10", "1")),
		o.msg(lineItem(t, messages.LineItemInvoice, "T1", "20", "2")),
		o.msg(lineItem(t, messages.LineItemCharge, "T1", "11", "1")),
		o.msg(lineItem(t, messages.LineItemCharge, "T1", "25", "2")),
	} {
		require.NoError(t, h.Handle(ctx, m))
	}

	got := st.saved["b1"]
	require.Len(t, got, 2)
	for i := range got {
		require.Equal(t, want.Discrepancies[i].Message, got[i].Message)
		require.Equal(t, want.Discrepancies[i].Pair, got[i].Pair)
	}
	require.Equal(t, 0, got[0].Pair)
	require.Equal(t, 1, got[1].Pair)
	require.Zero(t, h.Stats().Skipped)
}
