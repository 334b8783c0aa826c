// Package backend abstracts the data sources a list controller can page
// through. Two drivers exist: "truckmate", the TruckMate REST API, and
// "fixture", an in-memory dataset used for demos and tests.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartgistics/fleetmate-sub000/internal/listview"
	"github.com/smartgistics/fleetmate-sub000/internal/model"
)

var (
	// ErrNotConfigured is returned by every call of a backend that is
	// missing its connection settings.
	ErrNotConfigured = errors.New("TruckMate API is not configured: set truckmate.base_url or run with --demo")
	// ErrNotFound is returned when a single record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrUnsupported is returned for operations an entity does not allow.
	ErrUnsupported = errors.New("operation not supported")
	// ErrInvalidQuery is returned for list params a backend cannot evaluate.
	ErrInvalidQuery = errors.New("invalid query")
)

// ValidationError reports a create payload the data source refused.
type ValidationError struct {
	Message string
	Fields  map[string]string // field name -> problem
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + e.Fields[name]
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// RawPage is one page of undecoded records plus the total match count.
type RawPage struct {
	Items []json.RawMessage
	Total int
}

// Backend is a source of entity records.
type Backend interface {
	Name() string
	List(ctx context.Context, e model.Entity, p listview.Params) (RawPage, error)
	Get(ctx context.Context, e model.Entity, id string) (json.RawMessage, error)
	Create(ctx context.Context, e model.Entity, payload json.RawMessage) (json.RawMessage, error)
	Ping(ctx context.Context) error
	Close() error
}

// Config carries the settings of every driver. Drivers ignore what they
// do not use.
type Config struct {
	Driver string

	// truckmate
	BaseURL           string
	APIKey            string
	UserAgent         string
	Timeout           time.Duration
	MaxRetries        int
	RetryBase         time.Duration
	RequestsPerSecond float64

	// fixture
	Rows int
	Seed uint64

	Logger zerolog.Logger
}

// IsNotConfigured reports whether err stems from missing settings.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}

func wrapEntity(op string, e model.Entity, err error) error {
	return fmt.Errorf("failed to %s %s: %w", op, e.Name, err)
}
