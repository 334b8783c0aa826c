package model

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// FieldType is the JSON shape of a record field. It drives column types in
// the fixture store, literal handling in filters and the OpenAPI schema.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldInteger FieldType = "integer"
	FieldDecimal FieldType = "decimal"
	FieldBoolean FieldType = "boolean"
	FieldDate    FieldType = "date" // ISO-8601 text
)

// Field describes one attribute of an entity as TruckMate names it.
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Label    string    `json:"label"`
	Required bool      `json:"required,omitempty"` // required on create
}

// Entity describes one browsable TruckMate collection: where it lives, how
// its records are keyed, and the defaults every list of it starts from.
type Entity struct {
	Name       string `json:"name"`       // FleetMate route name, e.g. "customers"
	Label      string `json:"label"`      // human readable, e.g. "Customers"
	Path       string `json:"path"`       // TruckMate resource path, e.g. "/clients"
	Collection string `json:"collection"` // key holding the items in list responses
	Key        string `json:"key"`        // primary key field

	Fields       []Field  `json:"fields"`
	Columns      []string `json:"columns"`       // default table columns, in order
	SearchFields []string `json:"search_fields"` // fields matched by free-text search
	DefaultOrder string   `json:"default_order,omitempty"`

	// DefaultFilter seeds every list; searches are combined with it.
	DefaultFilter string `json:"default_filter,omitempty"`
	Creatable     bool   `json:"creatable"`
}

// Field returns the named field.
func (e Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns every field name in declaration order.
func (e Entity) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return names
}

// RequiredFields returns the fields that must be present on create.
func (e Entity) RequiredFields() []string {
	var names []string
	for _, f := range e.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// HasField reports whether name is a known field of e.
func (e Entity) HasField(name string) bool {
	_, ok := e.Field(name)
	return ok
}

const (
	statusCancelled = "CANCL"
)

var entities = map[string]Entity{
	"customers": {
		Name:       "customers",
		Label:      "Customers",
		Path:       "/clients",
		Collection: "clients",
		Key:        "clientId",
		Fields: []Field{
			{Name: "clientId", Type: FieldString, Label: "ID"},
			{Name: "name", Type: FieldString, Label: "Name", Required: true},
			{Name: "address1", Type: FieldString, Label: "Address"},
			{Name: "city", Type: FieldString, Label: "City", Required: true},
			{Name: "province", Type: FieldString, Label: "State/Prov", Required: true},
			{Name: "postalCode", Type: FieldString, Label: "Postal code"},
			{Name: "country", Type: FieldString, Label: "Country"},
			{Name: "businessPhone", Type: FieldString, Label: "Phone"},
			{Name: "email", Type: FieldString, Label: "Email"},
			{Name: "status", Type: FieldString, Label: "Status"},
			{Name: "creditLimit", Type: FieldDecimal, Label: "Credit limit"},
			{Name: "isInactive", Type: FieldBoolean, Label: "Inactive"},
		},
		Columns:      []string{"clientId", "name", "city", "province", "status", "creditLimit"},
		SearchFields: []string{"clientId", "name", "city"},
		DefaultOrder: "name asc",
		Creatable:    true,
	},
	"carriers": {
		Name:       "carriers",
		Label:      "Carriers",
		Path:       "/vendors",
		Collection: "vendors",
		Key:        "vendorId",
		Fields: []Field{
			{Name: "vendorId", Type: FieldString, Label: "ID"},
			{Name: "name", Type: FieldString, Label: "Name", Required: true},
			{Name: "vendorType", Type: FieldString, Label: "Type", Required: true},
			{Name: "city", Type: FieldString, Label: "City"},
			{Name: "province", Type: FieldString, Label: "State/Prov"},
			{Name: "mcNumber", Type: FieldString, Label: "MC #"},
			{Name: "dotNumber", Type: FieldString, Label: "DOT #"},
			{Name: "businessPhone", Type: FieldString, Label: "Phone"},
			{Name: "status", Type: FieldString, Label: "Status"},
			{Name: "insuranceExpiry", Type: FieldDate, Label: "Insurance expiry"},
		},
		Columns:      []string{"vendorId", "name", "vendorType", "city", "status", "insuranceExpiry"},
		SearchFields: []string{"vendorId", "name", "mcNumber"},
		DefaultOrder: "name asc",
		Creatable:    true,
	},
	"orders": {
		Name:       "orders",
		Label:      "Orders",
		Path:       "/orders",
		Collection: "orders",
		Key:        "orderId",
		Fields: []Field{
			{Name: "orderId", Type: FieldInteger, Label: "Order"},
			{Name: "billNumber", Type: FieldString, Label: "Bill #"},
			{Name: "billToId", Type: FieldString, Label: "Bill to", Required: true},
			{Name: "status", Type: FieldString, Label: "Status"},
			{Name: "startZone", Type: FieldString, Label: "Origin", Required: true},
			{Name: "endZone", Type: FieldString, Label: "Destination", Required: true},
			{Name: "pickUpBy", Type: FieldDate, Label: "Pick up by"},
			{Name: "deliverBy", Type: FieldDate, Label: "Deliver by"},
			{Name: "serviceLevel", Type: FieldString, Label: "Service"},
			{Name: "totalCharges", Type: FieldDecimal, Label: "Charges"},
			{Name: "currencyCode", Type: FieldString, Label: "Currency"},
		},
		Columns:       []string{"orderId", "billNumber", "billToId", "status", "startZone", "endZone", "pickUpBy", "totalCharges"},
		SearchFields:  []string{"billNumber", "billToId", "startZone", "endZone"},
		DefaultOrder:  "pickUpBy desc",
		DefaultFilter: fmt.Sprintf("status ne '%s'", statusCancelled),
		Creatable:     true,
	},
	"trips": {
		Name:       "trips",
		Label:      "Trips",
		Path:       "/trips",
		Collection: "trips",
		Key:        "tripNumber",
		Fields: []Field{
			{Name: "tripNumber", Type: FieldInteger, Label: "Trip"},
			{Name: "status", Type: FieldString, Label: "Status"},
			{Name: "driverId", Type: FieldString, Label: "Driver"},
			{Name: "powerUnitId", Type: FieldString, Label: "Power unit"},
			{Name: "trailerId", Type: FieldString, Label: "Trailer"},
			{Name: "carrierId", Type: FieldString, Label: "Carrier"},
			{Name: "originZone", Type: FieldString, Label: "Origin"},
			{Name: "destinationZone", Type: FieldString, Label: "Destination"},
			{Name: "startDate", Type: FieldDate, Label: "Start"},
			{Name: "endDate", Type: FieldDate, Label: "End"},
			{Name: "distance", Type: FieldDecimal, Label: "Distance"},
		},
		Columns:       []string{"tripNumber", "status", "driverId", "powerUnitId", "originZone", "destinationZone", "startDate"},
		SearchFields:  []string{"driverId", "powerUnitId", "originZone", "destinationZone"},
		DefaultOrder:  "startDate desc",
		DefaultFilter: fmt.Sprintf("status ne '%s'", statusCancelled),
	},
	"shipments": {
		Name:       "shipments",
		Label:      "Shipments",
		Path:       "/freightBills",
		Collection: "freightBills",
		Key:        "freightBillId",
		Fields: []Field{
			{Name: "freightBillId", Type: FieldInteger, Label: "ID"},
			{Name: "orderId", Type: FieldInteger, Label: "Order"},
			{Name: "tripNumber", Type: FieldInteger, Label: "Trip"},
			{Name: "commodity", Type: FieldString, Label: "Commodity"},
			{Name: "pieces", Type: FieldInteger, Label: "Pieces"},
			{Name: "weight", Type: FieldDecimal, Label: "Weight"},
			{Name: "weightUnits", Type: FieldString, Label: "Units"},
			{Name: "hazmat", Type: FieldBoolean, Label: "Hazmat"},
			{Name: "status", Type: FieldString, Label: "Status"},
		},
		Columns:      []string{"freightBillId", "orderId", "tripNumber", "commodity", "pieces", "weight", "status"},
		SearchFields: []string{"commodity", "status"},
		DefaultOrder: "freightBillId asc",
	},
}

// Entities returns every known entity sorted by name.
func Entities() []Entity {
	out := make([]Entity, 0, len(entities))
	for _, e := range entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EntityNames returns every known entity name sorted.
func EntityNames() []string {
	names := make([]string, 0, len(entities))
	for name := range entities {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LookupEntity finds an entity by its route name, case-insensitively.
func LookupEntity(name string) (Entity, bool) {
	e, ok := entities[strings.ToLower(strings.TrimSpace(name))]
	return e, ok
}
