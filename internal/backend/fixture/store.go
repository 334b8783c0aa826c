// Package fixture is an in-memory SQLite backend seeded with deterministic
// mock TruckMate data. It evaluates the same filter language TruckMate
// accepts, so list views behave the same against it.
package fixture

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/smartgistics/fleetmate-sub000/internal/backend"
	"github.com/smartgistics/fleetmate-sub000/internal/listview"
	"github.com/smartgistics/fleetmate-sub000/internal/model"
	"github.com/smartgistics/fleetmate-sub000/internal/odata"
)

// Driver is the registry name of this backend.
const Driver = "fixture"

const (
	// DefaultRows is the number of seeded records per entity.
	DefaultRows = 150
	// DefaultSeed makes every demo start from the same dataset.
	DefaultSeed = 20240501
)

// Store is the fixture backend.
type Store struct {
	db  *sqlx.DB
	log zerolog.Logger
	mu  sync.Mutex // serializes key generation on create
}

// Open is the backend.Factory of this driver.
func Open(cfg backend.Config) (backend.Backend, error) {
	return New(cfg)
}

// New opens a fresh in-memory database, creates one table per entity and
// seeds it.
func New(cfg backend.Config) (*Store, error) {
	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("sqlite connect: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, log: cfg.Logger.With().Str("component", "fixture").Logger()}

	rows := cfg.Rows
	if rows <= 0 {
		rows = DefaultRows
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = DefaultSeed
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.seed(seed, rows); err != nil {
		db.Close()
		return nil, err
	}
	s.log.Debug().Int("rows", rows).Uint64("seed", seed).Msg("fixture dataset seeded")
	return s, nil
}

// Name implements backend.Backend.
func (s *Store) Name() string { return Driver }

func table(e model.Entity) string { return odata.QuoteColumn(e.Name) }

func columnType(f model.Field, key bool) string {
	var t string
	switch f.Type {
	case model.FieldInteger, model.FieldBoolean:
		t = "INTEGER"
	case model.FieldDecimal:
		t = "NUMERIC"
	default:
		t = "TEXT"
	}
	if key {
		t += " PRIMARY KEY"
	}
	return t
}

func (s *Store) migrate() error {
	for _, e := range model.Entities() {
		cols := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			cols[i] = odata.QuoteColumn(f.Name) + " " + columnType(f, f.Name == e.Key)
		}
		stmt := fmt.Sprintf("CREATE TABLE %s (%s)", table(e), strings.Join(cols, ", "))
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create %s table: %w", e.Name, err)
		}
	}
	return nil
}

func insertSQL(e model.Entity, names []string) string {
	cols := make([]string, len(names))
	marks := make([]string, len(names))
	for i, n := range names {
		cols[i] = odata.QuoteColumn(n)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table(e), strings.Join(cols, ", "), strings.Join(marks, ", "))
}

func (s *Store) seed(seed uint64, rows int) error {
	gen := newSeeder(seed, rows)
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, name := range seedOrder {
		e, ok := model.LookupEntity(name)
		if !ok {
			continue
		}
		names := e.FieldNames()
		stmt, err := tx.Preparex(insertSQL(e, names))
		if err != nil {
			return fmt.Errorf("failed to prepare %s seed: %w", e.Name, err)
		}
		for i := 1; i <= rows; i++ {
			rec := gen.record(e, i)
			args := make([]any, len(names))
			for j, n := range names {
				args[j] = rec[n]
			}
			if _, err := stmt.Exec(args...); err != nil {
				stmt.Close()
				return fmt.Errorf("failed to seed %s: %w", e.Name, err)
			}
		}
		stmt.Close()
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// List implements backend.Backend. Ordering always ends with the key so
// pages are stable; $expand has no meaning here and is ignored.
func (s *Store) List(ctx context.Context, e model.Entity, p listview.Params) (backend.RawPage, error) {
	where, args, err := whereClause(e, p.Filter)
	if err != nil {
		return backend.RawPage{}, err
	}
	order, err := orderClause(e, p.OrderBy)
	if err != nil {
		return backend.RawPage{}, err
	}
	cols, err := selectList(e, p.Select)
	if err != nil {
		return backend.RawPage{}, err
	}
	if len(p.Expand) > 0 {
		s.log.Debug().Strs("expand", p.Expand).Str("entity", e.Name).Msg("fixture ignores $expand")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM "+table(e)+where, args...); err != nil {
		return backend.RawPage{}, fmt.Errorf("count %s: %w", e.Name, err)
	}

	limit := p.Limit
	if limit <= 0 {
		limit = listview.DefaultLimit
	}
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT ? OFFSET ?", cols, table(e), where, order)
	rows, err := s.db.QueryxContext(ctx, query, append(args, limit, max(p.Offset, 0))...)
	if err != nil {
		return backend.RawPage{}, fmt.Errorf("query %s: %w", e.Name, err)
	}
	defer rows.Close()

	items := []json.RawMessage{}
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return backend.RawPage{}, fmt.Errorf("scan %s: %w", e.Name, err)
		}
		raw, err := json.Marshal(cleanRecord(e, row))
		if err != nil {
			return backend.RawPage{}, err
		}
		items = append(items, raw)
	}
	if err := rows.Err(); err != nil {
		return backend.RawPage{}, fmt.Errorf("query %s: %w", e.Name, err)
	}
	return backend.RawPage{Items: items, Total: total}, nil
}

// Get implements backend.Backend.
func (s *Store) Get(ctx context.Context, e model.Entity, id string) (json.RawMessage, error) {
	key, ok := keyValue(e, id)
	if !ok {
		return nil, backend.ErrNotFound
	}
	row := make(map[string]any)
	err := s.db.QueryRowxContext(ctx, "SELECT * FROM "+table(e)+" WHERE "+odata.QuoteColumn(e.Key)+" = ?", key).MapScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %q: %w", e.Name, id, err)
	}
	return json.Marshal(cleanRecord(e, row))
}

func whereClause(e model.Entity, filter string) (string, []any, error) {
	expr, err := odata.Parse(filter)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", backend.ErrInvalidQuery, err)
	}
	if expr == nil {
		return "", nil, nil
	}
	sqlText, args, err := expr.SQL(e.FieldNames())
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", backend.ErrInvalidQuery, err)
	}
	return " WHERE " + sqlText, args, nil
}

func orderClause(e model.Entity, orderBy string) (string, error) {
	tiebreak := odata.OrderClause{Field: e.Key}.SQL(odata.QuoteColumn)
	clause, err := odata.ParseOrderBy(orderBy)
	if err != nil {
		return "", fmt.Errorf("%w: %v", backend.ErrInvalidQuery, err)
	}
	if clause == nil || clause.Field == e.Key {
		if clause != nil {
			return clause.SQL(odata.QuoteColumn), nil
		}
		return tiebreak, nil
	}
	if !e.HasField(clause.Field) {
		return "", fmt.Errorf("%w: cannot sort %s by unknown field %q", backend.ErrInvalidQuery, e.Name, clause.Field)
	}
	return clause.SQL(odata.QuoteColumn) + ", " + tiebreak, nil
}

func selectList(e model.Entity, fields []string) (string, error) {
	if len(fields) == 0 {
		fields = e.FieldNames()
	}
	cols := make([]string, len(fields))
	for i, f := range fields {
		if !e.HasField(f) {
			return "", fmt.Errorf("%w: %s has no field %q", backend.ErrInvalidQuery, e.Name, f)
		}
		cols[i] = odata.QuoteColumn(f)
	}
	return strings.Join(cols, ", "), nil
}

func keyValue(e model.Entity, id string) (any, bool) {
	f, _ := e.Field(e.Key)
	if f.Type == model.FieldInteger {
		n, err := strconv.ParseInt(id, 10, 64)
		return n, err == nil
	}
	return id, id != ""
}

// cleanRecord converts driver values into the JSON shapes TruckMate uses.
func cleanRecord(e model.Entity, row map[string]any) model.Record {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			v = string(b)
			row[k] = v
		}
		f, ok := e.Field(k)
		if !ok || v == nil {
			continue
		}
		switch f.Type {
		case model.FieldBoolean:
			if n, ok := v.(int64); ok {
				row[k] = n != 0
			}
		case model.FieldDecimal:
			switch n := v.(type) {
			case int64:
				row[k] = json.Number(decimal.NewFromInt(n).String())
			case float64:
				row[k] = json.Number(decimal.NewFromFloat(n).String())
			}
		}
	}
	return row
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

// Create implements backend.Backend. Missing keys are generated and a
// missing status gets the entity's initial status.
func (s *Store) Create(ctx context.Context, e model.Entity, payload json.RawMessage) (json.RawMessage, error) {
	if !e.Creatable {
		return nil, backend.ErrUnsupported
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var rec model.Record
	if err := dec.Decode(&rec); err != nil || rec == nil {
		return nil, &backend.ValidationError{Message: "invalid " + e.Name + " payload: expected a JSON object"}
	}
	if err := backend.Validate(e, rec); err != nil {
		return nil, err
	}

	values, err := coerce(e, rec)
	if err != nil {
		return nil, err
	}
	if st, ok := defaultStatus[e.Name]; ok && e.HasField("status") {
		if v, set := values["status"]; !set || v == nil || v == "" {
			values["status"] = st
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	keyField, _ := e.Field(e.Key)
	if v, ok := values[e.Key]; !ok || v == nil || v == "" {
		if keyField.Type == model.FieldInteger {
			delete(values, e.Key)
		} else {
			var next int64
			if err := s.db.GetContext(ctx, &next, "SELECT COALESCE(MAX(rowid), 0) + 1 FROM "+table(e)); err != nil {
				return nil, fmt.Errorf("next %s key: %w", e.Name, err)
			}
			values[e.Key] = stringKey(e.Name, next)
		}
	}

	names := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	for _, name := range e.FieldNames() {
		if v, ok := values[name]; ok {
			names = append(names, name)
			args = append(args, v)
		}
	}
	res, err := s.db.ExecContext(ctx, insertSQL(e, names), args...)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, &backend.ValidationError{
				Message: "duplicate " + e.Name + " record",
				Fields:  map[string]string{e.Key: e.Key + " already exists"},
			}
		}
		return nil, fmt.Errorf("insert %s: %w", e.Name, err)
	}

	id := fmt.Sprint(values[e.Key])
	if keyField.Type == model.FieldInteger && values[e.Key] == nil {
		n, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", e.Name, err)
		}
		id = strconv.FormatInt(n, 10)
	}
	s.log.Debug().Str("entity", e.Name).Str("id", id).Msg("fixture record created")
	return s.Get(ctx, e, id)
}

// coerce converts decoded JSON values to column values by field type.
func coerce(e model.Entity, rec model.Record) (map[string]any, error) {
	out := make(map[string]any, len(rec))
	bad := map[string]string{}
	for name, v := range rec {
		f, _ := e.Field(name)
		if v == nil {
			out[name] = nil
			continue
		}
		switch f.Type {
		case model.FieldInteger:
			n, ok := toInt(v)
			if !ok {
				bad[name] = name + " must be an integer"
				continue
			}
			out[name] = n
		case model.FieldDecimal:
			d, err := decimal.NewFromString(strings.TrimSpace(fmt.Sprint(v)))
			if err != nil {
				bad[name] = name + " must be a number"
				continue
			}
			out[name] = d.InexactFloat64()
		case model.FieldBoolean:
			b, ok := v.(bool)
			if !ok {
				bad[name] = name + " must be true or false"
				continue
			}
			out[name] = b
		default:
			str, ok := v.(string)
			if !ok {
				str = fmt.Sprint(v)
			}
			out[name] = str
		}
	}
	if len(bad) > 0 {
		return nil, &backend.ValidationError{Message: "invalid " + e.Name + " payload", Fields: bad}
	}
	return out, nil
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	case float64:
		return int64(n), n == float64(int64(n))
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

// Ping implements backend.Backend.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements backend.Backend.
func (s *Store) Close() error {
	return s.db.Close()
}
