package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/smartgistics/fleetmate-sub000/internal/listview"
	"github.com/smartgistics/fleetmate-sub000/internal/model"
)

// Fetcher adapts b into the fetch collaborator of a list controller,
// decoding every record of e into T.
func Fetcher[T any](b Backend, e model.Entity) listview.FetchFunc[T] {
	return func(ctx context.Context, p listview.Params) (listview.Page[T], error) {
		raw, err := b.List(ctx, e, p)
		if err != nil {
			return listview.Page[T]{}, wrapEntity("fetch", e, err)
		}
		items := make([]T, 0, len(raw.Items))
		for i, msg := range raw.Items {
			var item T
			if err := decode(msg, &item); err != nil {
				return listview.Page[T]{}, fmt.Errorf("failed to decode %s record %d: %w", e.Name, i, err)
			}
			items = append(items, item)
		}
		return listview.Page[T]{Items: items, Total: raw.Total}, nil
	}
}

// Creator adapts b into the create collaborator of a list controller.
// Payloads are validated before they leave the process.
func Creator[T any](b Backend, e model.Entity) listview.CreateFunc[T] {
	return func(ctx context.Context, payload T) (T, error) {
		var zero T
		if !e.Creatable {
			return zero, wrapEntity("create", e, ErrUnsupported)
		}
		if err := Validate(e, payload); err != nil {
			return zero, err
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return zero, fmt.Errorf("failed to encode %s payload: %w", e.Name, err)
		}
		raw, err := b.Create(ctx, e, body)
		if err != nil {
			return zero, wrapEntity("create", e, err)
		}
		var created T
		if err := decode(raw, &created); err != nil {
			return zero, fmt.Errorf("failed to decode created %s: %w", e.Name, err)
		}
		return created, nil
	}
}

// Get fetches and decodes a single record.
func Get[T any](ctx context.Context, b Backend, e model.Entity, id string) (T, error) {
	var out T
	raw, err := b.Get(ctx, e, id)
	if err != nil {
		return out, wrapEntity("get", e, err)
	}
	if err := decode(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode %s %q: %w", e.Name, id, err)
	}
	return out, nil
}

// decode keeps numbers as json.Number so decimal amounts in untyped records
// are not rounded through float64.
func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
