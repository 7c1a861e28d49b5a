package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/BearBump/CarrierBox/internal/broker/messages"
	"github.com/BearBump/CarrierBox/internal/metrics"
	"github.com/BearBump/CarrierBox/internal/models"
	"github.com/pkg/errors"
)

type ShippingDB interface {
	Authenticate(username, password string) models.TokenInfo
	ResolveToken(token string) (string, bool)
	FindAccount(username string) (models.Account, bool)
	Invalidate(username string) bool

	AddShipment(sh models.Shipment) models.Shipment
	GetShipment(id string) (models.Shipment, bool)
	GetShipmentByTrackingNumber(trackingNumber string) (models.Shipment, bool)
	ListShipments() []models.Shipment

	AddLabel(l models.ShipmentLabel) models.ShipmentLabel
	ListLabels(sh models.Shipment) []models.ShipmentLabel
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Topics struct {
	ShipmentCreated string
	LabelCreated    string
}

const TokenTypeBearer = "Bearer"

type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int    `json:"expiresIn"`
}

// LabelFile is an uploaded label. A nil *LabelFile means no file was sent.
type LabelFile struct {
	Data        []byte
	ContentType string
}

type Service struct {
	db ShippingDB

	producer Producer
	topics   Topics

	limiter        RateLimiter
	loginPerMinute int64

	metrics *metrics.Metrics
	now     func() time.Time
}

func New(db ShippingDB) *Service {
	return &Service{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithEvents enables shipment.created / label.created publishing.
func (s *Service) WithEvents(p Producer, topics Topics) *Service {
	s.producer = p
	s.topics = topics
	return s
}

// WithLoginRateLimit caps authentication attempts per username per minute.
// perMinute <= 0 disables the limit.
func (s *Service) WithLoginRateLimit(rl RateLimiter, perMinute int64) *Service {
	s.limiter = rl
	s.loginPerMinute = perMinute
	return s
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) Authenticate(ctx context.Context, username, password string) (TokenResponse, error) {
	if username == "" || password == "" {
		return TokenResponse{}, errors.Wrap(ErrValidation, "username and password are required")
	}
	if !s.allowLogin(ctx, username) {
		s.metrics.AuthFailed("rate_limited")
		return TokenResponse{}, errors.Wrap(ErrRateLimited, "too many login attempts, try again later")
	}

	info := s.db.Authenticate(username, password)
	if info == models.InvalidTokenInfo {
		s.metrics.AuthFailed("bad_credentials")
		return TokenResponse{}, errors.Wrap(ErrUnauthorized, "invalid username or password")
	}
	s.metrics.TokenIssued()

	expiresIn := int(math.Round(info.Expiry.Sub(s.now()).Seconds()))
	if expiresIn < 0 {
		expiresIn = 0
	}
	return TokenResponse{
		AccessToken: info.Token,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   expiresIn,
	}, nil
}

func (s *Service) FindAccount(ctx context.Context, token string) (models.Account, error) {
	username, err := s.resolve(token)
	if err != nil {
		return models.Account{}, err
	}
	acc, ok := s.db.FindAccount(username)
	if !ok {
		s.metrics.AuthFailed("unknown_account")
		return models.Account{}, errors.Wrap(ErrUnauthorized, "invalid or expired token")
	}
	return acc, nil
}

func (s *Service) Logout(ctx context.Context, token string) (string, error) {
	username, err := s.resolve(token)
	if err != nil {
		return "", err
	}
	if !s.db.Invalidate(username) {
		// token expired or was superseded between resolve and invalidate
		s.metrics.AuthFailed("invalid_token")
		return "", errors.Wrap(ErrUnauthorized, "invalid or expired token")
	}
	s.metrics.LoggedOut()
	return "Logged out successfully", nil
}

func (s *Service) AddShipment(ctx context.Context, token string, sh models.Shipment) (models.Shipment, error) {
	username, err := s.resolve(token)
	if err != nil {
		return models.Shipment{}, err
	}
	stored := s.db.AddShipment(sh)
	s.metrics.ShipmentCreated()

	s.publish(ctx, s.topics.ShipmentCreated, stored.ID, messages.ShipmentCreated{
		ShipmentID:     stored.ID,
		Carrier:        stored.Carrier,
		TrackingNumber: stored.TrackingNumber,
		Amount:         stored.Amount,
		Zone:           stored.Zone,
		CreatedBy:      username,
		CreatedAt:      s.now(),
	})
	return stored, nil
}

func (s *Service) GetShipment(ctx context.Context, token, shipmentID string) (models.Shipment, error) {
	if _, err := s.resolve(token); err != nil {
		return models.Shipment{}, err
	}
	sh, ok := s.db.GetShipment(shipmentID)
	if !ok {
		return models.Shipment{}, errors.Wrapf(ErrNotFound, "shipment with ID %s", shipmentID)
	}
	return sh, nil
}

func (s *Service) GetShipments(ctx context.Context, token string) ([]models.Shipment, error) {
	if _, err := s.resolve(token); err != nil {
		return nil, err
	}
	return s.db.ListShipments(), nil
}

// AddShipmentLabel attaches a label to an existing shipment. The format is PDF
// when the uploaded content type is application/pdf and PNG for any other
// upload; without a file an empty PDF label is stored.
func (s *Service) AddShipmentLabel(ctx context.Context, token, shipmentID string, file *LabelFile) (models.ShipmentLabel, error) {
	username, err := s.resolve(token)
	if err != nil {
		return models.ShipmentLabel{}, err
	}
	if shipmentID == "" {
		return models.ShipmentLabel{}, errors.Wrap(ErrValidation, "shipmentId is required")
	}
	sh, ok := s.db.GetShipment(shipmentID)
	if !ok {
		return models.ShipmentLabel{}, errors.Wrapf(ErrNotFound, "shipment with ID %s", shipmentID)
	}

	label := models.ShipmentLabel{
		ShipmentID: sh.ID,
		LabelData:  []byte{},
		Format:     models.LabelFormatPDF,
	}
	if file != nil {
		label.LabelData = file.Data
		label.Format = labelFormat(file.ContentType)
	}

	stored := s.db.AddLabel(label)
	s.metrics.LabelCreated(stored.Format)

	s.publish(ctx, s.topics.LabelCreated, sh.ID, messages.LabelCreated{
		LabelID:    stored.ID,
		ShipmentID: stored.ShipmentID,
		Format:     stored.Format,
		Size:       len(stored.LabelData),
		CreatedBy:  username,
		CreatedAt:  s.now(),
	})
	return stored, nil
}

func (s *Service) GetShipmentLabels(ctx context.Context, token, trackingNumber string) ([]models.ShipmentLabel, error) {
	if _, err := s.resolve(token); err != nil {
		return nil, err
	}
	sh, ok := s.db.GetShipmentByTrackingNumber(trackingNumber)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "shipment with tracking number %s", trackingNumber)
	}
	return s.db.ListLabels(sh), nil
}

func (s *Service) GetShipmentLabelsByShipmentID(ctx context.Context, token, shipmentID string) ([]models.ShipmentLabel, error) {
	if _, err := s.resolve(token); err != nil {
		return nil, err
	}
	sh, ok := s.db.GetShipment(shipmentID)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "shipment with ID %s", shipmentID)
	}
	return s.db.ListLabels(sh), nil
}

func (s *Service) resolve(token string) (string, error) {
	username, ok := s.db.ResolveToken(token)
	if !ok {
		s.metrics.AuthFailed("invalid_token")
		return "", errors.Wrap(ErrUnauthorized, "invalid or expired token")
	}
	return username, nil
}

// allowLogin fails open: a broken limiter must not lock everybody out.
func (s *Service) allowLogin(ctx context.Context, username string) bool {
	if s.limiter == nil || s.loginPerMinute <= 0 {
		return true
	}
	key := fmt.Sprintf("rl:login:%s:%s", username, s.now().Format("200601021504"))
	ok, _, err := s.limiter.Allow(ctx, key, s.loginPerMinute, 70*time.Second)
	if err != nil {
		slog.Warn("login rate limiter unavailable", "err", err)
		return true
	}
	return ok
}

func (s *Service) publish(ctx context.Context, topic, key string, event any) {
	if s.producer == nil || topic == "" {
		return
	}
	b, err := json.Marshal(event)
	if err != nil {
		slog.Warn("marshal event", "topic", topic, "err", err)
		return
	}
	if err := s.producer.Publish(ctx, topic, []byte(key), b); err != nil {
		s.metrics.EventFailed(topic)
		slog.Warn("publish event", "topic", topic, "key", key, "err", err)
	}
}

func labelFormat(contentType string) string {
	if strings.EqualFold(contentType, "application/pdf") {
		return models.LabelFormatPDF
	}
	return models.LabelFormatPNG
}
