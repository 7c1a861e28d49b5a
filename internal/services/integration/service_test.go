package integration

import (
	"context"
	"strings"
	"testing"

	"github.com/BearBump/CarrierBox/internal/metrics"
	"github.com/BearBump/CarrierBox/internal/models"
	"github.com/BearBump/CarrierBox/internal/storage/shippingdb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type recordingProducer struct {
	topics []string
	keys   []string
}

func (p *recordingProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, string(key))
	return nil
}

func newRealService(t *testing.T) (*Service, *recordingProducer, *metrics.Metrics) {
	t.Helper()
	p := &recordingProducer{}
	m := metrics.New(prometheus.NewRegistry())
	svc := New(shippingdb.New(nil)).
		WithEvents(p, Topics{ShipmentCreated: "shipment.created", LabelCreated: "label.created"}).
		WithMetrics(m)
	return svc, p, m
}

func TestService_FullFlow(t *testing.T) {
	svc, p, m := newRealService(t)
	ctx := context.Background()

	tok, err := svc.Authenticate(ctx, "admin", "password")
	require.NoError(t, err)
	require.Equal(t, "Bearer", tok.TokenType)
	require.InDelta(t, 3600, tok.ExpiresIn, 1)
	require.Len(t, tok.AccessToken, 24)

	acc, err := svc.FindAccount(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "admin", acc.UserName)

	sh, err := svc.AddShipment(ctx, tok.AccessToken, models.Shipment{Carrier: "DHL", Amount: 1.5, Zone: "NL"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(sh.TrackingNumber, "TRACK-"))

	got, err := svc.GetShipment(ctx, tok.AccessToken, sh.ID)
	require.NoError(t, err)
	require.Equal(t, sh, got)

	list, err := svc.GetShipments(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, []models.Shipment{sh}, list)

	label, err := svc.AddShipmentLabel(ctx, tok.AccessToken, sh.ID, &LabelFile{Data: []byte("%PDF-1.4"), ContentType: "application/pdf"})
	require.NoError(t, err)
	require.Equal(t, models.LabelFormatPDF, label.Format)

	byTN, err := svc.GetShipmentLabels(ctx, tok.AccessToken, sh.TrackingNumber)
	require.NoError(t, err)
	require.Equal(t, []models.ShipmentLabel{label}, byTN)

	byID, err := svc.GetShipmentLabelsByShipmentID(ctx, tok.AccessToken, sh.ID)
	require.NoError(t, err)
	require.Equal(t, byTN, byID)

	msg, err := svc.Logout(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.NotEmpty(t, msg)

	_, err = svc.GetShipments(ctx, tok.AccessToken)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Logout(ctx, tok.AccessToken)
	require.ErrorIs(t, err, ErrUnauthorized)

	require.Equal(t, []string{"shipment.created", "label.created"}, p.topics)
	require.Equal(t, []string{sh.ID, sh.ID}, p.keys)

	require.Equal(t, 1.0, testutil.ToFloat64(m.TokensIssued))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ShipmentsCreated))
	require.Equal(t, 1.0, testutil.ToFloat64(m.LabelsCreated.WithLabelValues(models.LabelFormatPDF)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Logouts))
	require.Equal(t, 2.0, testutil.ToFloat64(m.AuthFailures.WithLabelValues("invalid_token")))
}

func TestService_ReauthenticationSupersedesToken(t *testing.T) {
	svc, _, _ := newRealService(t)
	ctx := context.Background()

	first, err := svc.Authenticate(ctx, "user1", "pass123")
	require.NoError(t, err)
	second, err := svc.Authenticate(ctx, "user1", "pass123")
	require.NoError(t, err)

	_, err = svc.GetShipments(ctx, first.AccessToken)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.GetShipments(ctx, second.AccessToken)
	require.NoError(t, err)
}

func TestService_NotFoundIncludesIdentifier(t *testing.T) {
	svc, _, _ := newRealService(t)
	ctx := context.Background()
	tok, err := svc.Authenticate(ctx, "demo", "demo123")
	require.NoError(t, err)

	_, err = svc.GetShipment(ctx, tok.AccessToken, "does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), "does-not-exist")

	_, err = svc.GetShipmentLabelsByShipmentID(ctx, tok.AccessToken, "does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_WithoutOptionalCollaborators(t *testing.T) {
	svc := New(shippingdb.New(nil))
	ctx := context.Background()

	tok, err := svc.Authenticate(ctx, "admin", "password")
	require.NoError(t, err)
	_, err = svc.AddShipment(ctx, tok.AccessToken, models.Shipment{Carrier: "UPS", TrackingNumber: "1Z"})
	require.NoError(t, err)
	labels, err := svc.GetShipmentLabels(ctx, tok.AccessToken, "1Z")
	require.NoError(t, err)
	require.Empty(t, labels)
}
