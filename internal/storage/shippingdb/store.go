// Package shippingdb is the in-memory shipping database: credential store,
// account directory, token registry, shipment store and label store.
//
// All mutable state (the three token maps, shipments and labels) lives behind a
// single mutex. Token eviction on re-authentication and installation of the new
// token must be observed atomically by concurrent resolvers, so the lock is not
// split per map.
package shippingdb

import (
	"sync"
	"time"

	"github.com/BearBump/CarrierBox/internal/models"
	"github.com/google/uuid"
)

const DefaultTokenTTL = time.Hour

type Store struct {
	// read-only after New
	credentials map[string]string
	accounts    map[string]models.Account

	mu sync.Mutex

	tokenUser   map[uuid.UUID]string
	tokenExpiry map[uuid.UUID]time.Time
	userToken   map[string]uuid.UUID

	shipments     map[uuid.UUID]models.Shipment
	shipmentOrder []uuid.UUID

	labels     map[uuid.UUID]models.ShipmentLabel
	labelOrder []uuid.UUID

	tokenTTL time.Duration
	now      func() time.Time
}

// New builds a store seeded with users. DefaultUsers() is used when users is empty.
func New(users []SeedUser) *Store {
	if len(users) == 0 {
		users = DefaultUsers()
	}
	s := &Store{
		credentials: make(map[string]string, len(users)),
		accounts:    make(map[string]models.Account, len(users)),
		tokenUser:   map[uuid.UUID]string{},
		tokenExpiry: map[uuid.UUID]time.Time{},
		userToken:   map[string]uuid.UUID{},
		shipments:   map[uuid.UUID]models.Shipment{},
		labels:      map[uuid.UUID]models.ShipmentLabel{},
		tokenTTL:    DefaultTokenTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, u := range users {
		if u.UserName == "" {
			continue
		}
		s.credentials[u.UserName] = u.Password
		s.accounts[u.UserName] = models.Account{
			ID:       uuid.NewString(),
			UserName: u.UserName,
			Name:     u.Name,
			Surname:  u.Surname,
		}
	}
	return s
}

func (s *Store) WithTokenTTL(ttl time.Duration) *Store {
	if ttl > 0 {
		s.tokenTTL = ttl
	}
	return s
}

// WithClock replaces the time source used for token expiry.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

type Stats struct {
	LiveTokens int `json:"liveTokens"`
	Shipments  int `json:"shipments"`
	Labels     int `json:"labels"`
}

// Stats counts registry entries. LiveTokens may include expired tokens that
// nobody has looked up yet.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		LiveTokens: len(s.userToken),
		Shipments:  len(s.shipments),
		Labels:     len(s.labels),
	}
}
