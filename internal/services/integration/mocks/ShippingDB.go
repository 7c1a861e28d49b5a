package mocks

import (
	models "github.com/BearBump/CarrierBox/internal/models"
	mock "github.com/stretchr/testify/mock"
)

// ShippingDB is a mock type for the ShippingDB type
type ShippingDB struct {
	mock.Mock
}

func (_m *ShippingDB) Authenticate(username string, password string) models.TokenInfo {
	ret := _m.Called(username, password)
	return ret.Get(0).(models.TokenInfo)
}

func (_m *ShippingDB) ResolveToken(token string) (string, bool) {
	ret := _m.Called(token)
	return ret.String(0), ret.Bool(1)
}

func (_m *ShippingDB) FindAccount(username string) (models.Account, bool) {
	ret := _m.Called(username)
	return ret.Get(0).(models.Account), ret.Bool(1)
}

func (_m *ShippingDB) Invalidate(username string) bool {
	ret := _m.Called(username)
	return ret.Bool(0)
}

func (_m *ShippingDB) AddShipment(sh models.Shipment) models.Shipment {
	ret := _m.Called(sh)
	if rf, ok := ret.Get(0).(func(models.Shipment) models.Shipment); ok {
		return rf(sh)
	}
	return ret.Get(0).(models.Shipment)
}

func (_m *ShippingDB) GetShipment(id string) (models.Shipment, bool) {
	ret := _m.Called(id)
	return ret.Get(0).(models.Shipment), ret.Bool(1)
}

func (_m *ShippingDB) GetShipmentByTrackingNumber(trackingNumber string) (models.Shipment, bool) {
	ret := _m.Called(trackingNumber)
	return ret.Get(0).(models.Shipment), ret.Bool(1)
}

func (_m *ShippingDB) ListShipments() []models.Shipment {
	ret := _m.Called()
	var r0 []models.Shipment
	if rf, ok := ret.Get(0).([]models.Shipment); ok {
		r0 = rf
	}
	return r0
}

func (_m *ShippingDB) AddLabel(l models.ShipmentLabel) models.ShipmentLabel {
	ret := _m.Called(l)
	if rf, ok := ret.Get(0).(func(models.ShipmentLabel) models.ShipmentLabel); ok {
		return rf(l)
	}
	return ret.Get(0).(models.ShipmentLabel)
}

func (_m *ShippingDB) ListLabels(sh models.Shipment) []models.ShipmentLabel {
	ret := _m.Called(sh)
	var r0 []models.ShipmentLabel
	if rf, ok := ret.Get(0).([]models.ShipmentLabel); ok {
		r0 = rf
	}
	return r0
}
