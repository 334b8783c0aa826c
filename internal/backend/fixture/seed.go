package fixture

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartgistics/fleetmate-sub000/internal/model"
)

// seedOrder lists entities so that references point at existing rows.
var seedOrder = []string{"customers", "carriers", "orders", "trips", "shipments"}

var (
	companyHeads = []string{"Acme", "Summit", "Northwind", "Blue Ridge", "Cascade", "Prairie", "Ironwood", "Silver State", "Keystone", "Redwood"}
	companyTails = []string{"Foods", "Logistics", "Supply", "Manufacturing", "Distribution", "Farms", "Steel", "Paper"}
	carrierTails = []string{"Transport", "Freight", "Carriers", "Trucking", "Express", "Haulers"}
	places       = []place{
		{"Reno", "NV", "RENO", "US"},
		{"Salt Lake City", "UT", "SLC", "US"},
		{"Boise", "ID", "BOI", "US"},
		{"Sacramento", "CA", "SAC", "US"},
		{"Portland", "OR", "PDX", "US"},
		{"Denver", "CO", "DEN", "US"},
		{"Phoenix", "AZ", "PHX", "US"},
		{"Spokane", "WA", "GEG", "US"},
		{"Calgary", "AB", "YYC", "CA"},
		{"Vancouver", "BC", "YVR", "CA"},
	}
	commodities = []string{"Frozen produce", "Steel coils", "Paper rolls", "Dry groceries", "Lumber", "Auto parts", "Fertilizer", "Beverages"}
	statuses    = map[string][]string{
		"customers": {"ACTIVE", "ACTIVE", "ACTIVE", "HOLD"},
		"carriers":  {"ACTIVE", "ACTIVE", "SUSPENDED"},
		"orders":    {"AVAIL", "PLANNED", "DISP", "DELVD", "CANCL"},
		"trips":     {"AVAIL", "PLANNED", "DISP", "DONE", "CANCL"},
		"shipments": {"OPEN", "LOADED", "DELIVERED"},
	}
	// defaultStatus is applied to created records without a status.
	defaultStatus = map[string]string{
		"customers": "ACTIVE",
		"carriers":  "ACTIVE",
		"orders":    "AVAIL",
	}
	keyPrefix = map[string]string{
		"customers": "C",
		"carriers":  "V",
	}
	// keyBase offsets generated integer keys so they look like TruckMate ids.
	keyBase = map[string]int64{
		"orders":    50000,
		"trips":     9000,
		"shipments": 700000,
	}
)

type place struct{ city, province, zone, country string }

var seedEpoch = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

type seeder struct {
	rng  *rand.Rand
	rows int
}

func newSeeder(seed uint64, rows int) *seeder {
	return &seeder{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), rows: rows}
}

func pick[T any](s *seeder, xs []T) T {
	return xs[s.rng.IntN(len(xs))]
}

func stringKey(entity string, n int64) string {
	return fmt.Sprintf("%s%04d", keyPrefix[entity], n)
}

func (s *seeder) money(maxCents int) float64 {
	return decimal.New(int64(s.rng.IntN(maxCents)), -2).InexactFloat64()
}

func (s *seeder) date(spreadDays int) string {
	return seedEpoch.Add(time.Duration(s.rng.IntN(spreadDays*24)) * time.Hour).Format(time.RFC3339)
}

// record generates row i (1-based) of entity e.
func (s *seeder) record(e model.Entity, i int) model.Record {
	at := pick(s, places)
	rec := model.Record{}
	for _, f := range e.Fields {
		rec[f.Name] = s.value(e, f, i, at)
	}
	switch e.Name {
	case "orders", "trips":
		if pickUp, ok := rec["pickUpBy"].(string); ok {
			rec["deliverBy"] = shiftDate(pickUp, 24+s.rng.IntN(96))
		}
		if start, ok := rec["startDate"].(string); ok {
			rec["endDate"] = shiftDate(start, 8+s.rng.IntN(72))
		}
	}
	return rec
}

func shiftDate(ts string, hours int) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Add(time.Duration(hours) * time.Hour).Format(time.RFC3339)
}

func (s *seeder) value(e model.Entity, f model.Field, i int, at place) any {
	if f.Name == e.Key {
		if f.Type == model.FieldInteger {
			return keyBase[e.Name] + int64(i)
		}
		return stringKey(e.Name, int64(i))
	}

	switch f.Name {
	case "name":
		if e.Name == "carriers" {
			return pick(s, companyHeads) + " " + pick(s, carrierTails)
		}
		return pick(s, companyHeads) + " " + pick(s, companyTails)
	case "address1":
		return fmt.Sprintf("%d %s Ave", 100+s.rng.IntN(9900), pick(s, companyHeads))
	case "city":
		return at.city
	case "province":
		return at.province
	case "country":
		return at.country
	case "postalCode":
		return fmt.Sprintf("%05d", s.rng.IntN(100000))
	case "businessPhone":
		return fmt.Sprintf("(%03d) 555-%04d", 200+s.rng.IntN(700), s.rng.IntN(10000))
	case "email":
		return fmt.Sprintf("dispatch%d@example.com", i)
	case "status":
		return pick(s, statuses[e.Name])
	case "vendorType":
		return pick(s, []string{"CARRIER", "CARRIER", "BROKER", "OWNEROP"})
	case "mcNumber":
		return fmt.Sprintf("MC%06d", s.rng.IntN(1000000))
	case "dotNumber":
		return fmt.Sprintf("%07d", s.rng.IntN(10000000))
	case "billNumber":
		return fmt.Sprintf("FB%06d", 100000+i)
	case "billToId":
		return stringKey("customers", int64(1+s.rng.IntN(s.rows)))
	case "carrierId":
		return stringKey("carriers", int64(1+s.rng.IntN(s.rows)))
	case "orderId":
		return keyBase["orders"] + int64(1+s.rng.IntN(s.rows))
	case "tripNumber":
		return keyBase["trips"] + int64(1+s.rng.IntN(s.rows))
	case "startZone", "originZone":
		return at.zone
	case "endZone", "destinationZone":
		return pick(s, places).zone
	case "driverId":
		return fmt.Sprintf("D%03d", 1+s.rng.IntN(60))
	case "powerUnitId":
		return fmt.Sprintf("PU%03d", 1+s.rng.IntN(80))
	case "trailerId":
		return fmt.Sprintf("TR%03d", 1+s.rng.IntN(120))
	case "serviceLevel":
		return pick(s, []string{"STD", "EXP", "TEAM"})
	case "currencyCode":
		if at.country == "CA" {
			return "CAD"
		}
		return "USD"
	case "commodity":
		return pick(s, commodities)
	case "weightUnits":
		return "LB"
	case "creditLimit":
		return float64(5000 * (1 + s.rng.IntN(40)))
	case "totalCharges":
		return s.money(900000)
	case "distance":
		return decimal.New(int64(s.rng.IntN(150000)), -1).InexactFloat64()
	case "weight":
		return decimal.New(int64(500+s.rng.IntN(44000)), 0).InexactFloat64()
	case "pieces":
		return int64(1 + s.rng.IntN(30))
	}

	switch f.Type {
	case model.FieldBoolean:
		return s.rng.IntN(10) == 0
	case model.FieldDate:
		return s.date(120)
	case model.FieldDecimal:
		return s.money(100000)
	case model.FieldInteger:
		return int64(s.rng.IntN(1000))
	}
	return nil
}
