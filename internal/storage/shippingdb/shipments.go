package shippingdb

import (
	"strings"

	"github.com/BearBump/CarrierBox/internal/models"
	"github.com/google/uuid"
)

const trackingNumberPrefix = "TRACK-"

// AddShipment stores a copy of sh under a new store-generated id. A caller
// supplied ID is ignored. A blank tracking number is replaced with
// "TRACK-" plus the first 8 hex digits of the id, upper-cased.
func (s *Store) AddShipment(sh models.Shipment) models.Shipment {
	id := uuid.New()
	sh.ID = id.String()
	if sh.TrackingNumber == "" {
		sh.TrackingNumber = trackingNumberPrefix + strings.ToUpper(sh.ID[:8])
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.shipments[id] = sh
	s.shipmentOrder = append(s.shipmentOrder, id)
	return sh
}

func (s *Store) GetShipment(id string) (models.Shipment, bool) {
	key, err := uuid.Parse(id)
	if err != nil {
		return models.Shipment{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shipments[key]
	return sh, ok
}

// GetShipmentByTrackingNumber returns the earliest inserted shipment with the given tracking number.
func (s *Store) GetShipmentByTrackingNumber(trackingNumber string) (models.Shipment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.shipmentOrder {
		if sh := s.shipments[id]; sh.TrackingNumber == trackingNumber {
			return sh, true
		}
	}
	return models.Shipment{}, false
}

// ListShipments returns a snapshot in insertion order.
func (s *Store) ListShipments() []models.Shipment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Shipment, 0, len(s.shipmentOrder))
	for _, id := range s.shipmentOrder {
		out = append(out, s.shipments[id])
	}
	return out
}
