package model

import "github.com/shopspring/decimal"

// Record is an entity-agnostic row as decoded from TruckMate JSON.
type Record = map[string]any

// Customer is a TruckMate client: the party that books and pays for orders.
type Customer struct {
	ClientID      string          `json:"clientId,omitempty"`
	Name          string          `json:"name" validate:"required"`
	Address1      string          `json:"address1,omitempty"`
	City          string          `json:"city" validate:"required"`
	Province      string          `json:"province" validate:"required"`
	PostalCode    string          `json:"postalCode,omitempty"`
	Country       string          `json:"country,omitempty"`
	BusinessPhone string          `json:"businessPhone,omitempty"`
	Email         string          `json:"email,omitempty" validate:"omitempty,email"`
	Status        string          `json:"status,omitempty"`
	CreditLimit   decimal.Decimal `json:"creditLimit"`
	IsInactive    bool            `json:"isInactive"`
}

// Carrier is a TruckMate vendor that hauls freight.
type Carrier struct {
	VendorID        string `json:"vendorId,omitempty"`
	Name            string `json:"name" validate:"required"`
	VendorType      string `json:"vendorType" validate:"required"`
	City            string `json:"city,omitempty"`
	Province        string `json:"province,omitempty"`
	MCNumber        string `json:"mcNumber,omitempty"`
	DOTNumber       string `json:"dotNumber,omitempty"`
	BusinessPhone   string `json:"businessPhone,omitempty"`
	Status          string `json:"status,omitempty"`
	InsuranceExpiry string `json:"insuranceExpiry,omitempty"`
}

// Order is a customer's request to move freight between two zones.
type Order struct {
	OrderID      int64           `json:"orderId,omitempty"`
	BillNumber   string          `json:"billNumber,omitempty"`
	BillToID     string          `json:"billToId" validate:"required"`
	Status       string          `json:"status,omitempty"`
	StartZone    string          `json:"startZone" validate:"required"`
	EndZone      string          `json:"endZone" validate:"required"`
	PickUpBy     string          `json:"pickUpBy,omitempty"`
	DeliverBy    string          `json:"deliverBy,omitempty"`
	ServiceLevel string          `json:"serviceLevel,omitempty"`
	TotalCharges decimal.Decimal `json:"totalCharges"`
	CurrencyCode string          `json:"currencyCode,omitempty"`
}

// Trip is one dispatched movement of a power unit, possibly covering
// several orders.
type Trip struct {
	TripNumber      int64           `json:"tripNumber"`
	Status          string          `json:"status"`
	DriverID        string          `json:"driverId,omitempty"`
	PowerUnitID     string          `json:"powerUnitId,omitempty"`
	TrailerID       string          `json:"trailerId,omitempty"`
	CarrierID       string          `json:"carrierId,omitempty"`
	OriginZone      string          `json:"originZone,omitempty"`
	DestinationZone string          `json:"destinationZone,omitempty"`
	StartDate       string          `json:"startDate,omitempty"`
	EndDate         string          `json:"endDate,omitempty"`
	Distance        decimal.Decimal `json:"distance"`
}

// Shipment is a freight bill detail line carried on a trip.
type Shipment struct {
	FreightBillID int64           `json:"freightBillId"`
	OrderID       int64           `json:"orderId"`
	TripNumber    int64           `json:"tripNumber,omitempty"`
	Commodity     string          `json:"commodity"`
	Pieces        int             `json:"pieces"`
	Weight        decimal.Decimal `json:"weight"`
	WeightUnits   string          `json:"weightUnits,omitempty"`
	Hazmat        bool            `json:"hazmat"`
	Status        string          `json:"status,omitempty"`
}
