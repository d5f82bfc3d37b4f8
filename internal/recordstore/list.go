package recordstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MalformedHook is told about values that failed to decode before they are
// treated as absent.
type MalformedHook func(key string, err error)

// List is a typed collection stored as one JSON array under one key.
// Scoped lists (patient_docs_<id>, patient_budgets_<id>) take the patient id
// as scope; fixed lists (appointments, invoices) take an empty scope.
type List[T any] struct {
	store       Store
	base        string
	scoped      bool
	codec       Codec
	onMalformed MalformedHook
}

// NewList stores the collection under key.
func NewList[T any](store Store, key string, codec Codec) *List[T] {
	return &List[T]{store: store, base: key, codec: codec}
}

// NewScopedList stores one collection per scope under prefix+scope.
func NewScopedList[T any](store Store, prefix string, codec Codec) *List[T] {
	return &List[T]{store: store, base: prefix, scoped: true, codec: codec}
}

func (l *List[T]) OnMalformed(hook MalformedHook) *List[T] {
	l.onMalformed = hook
	return l
}

func (l *List[T]) Key(scope string) (string, error) {
	scope = strings.TrimSpace(scope)
	if !l.scoped {
		return l.base, nil
	}
	if scope == "" {
		return "", fmt.Errorf("%w: scope required for %s", ErrEmptyKey, l.base)
	}
	return l.base + scope, nil
}

// Load returns the stored items, or an empty slice if the key is absent or
// its value is malformed.
func (l *List[T]) Load(ctx context.Context, scope string) ([]T, error) {
	key, err := l.Key(scope)
	if err != nil {
		return nil, err
	}

	raw, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []T{}, nil
	}

	var items []T
	if err := l.codec.Decode(raw, &items); err != nil {
		if errors.Is(err, ErrMalformed) {
			if l.onMalformed != nil {
				l.onMalformed(key, err)
			}
			return []T{}, nil
		}
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (l *List[T]) Save(ctx context.Context, scope string, items []T) error {
	key, err := l.Key(scope)
	if err != nil {
		return err
	}
	if items == nil {
		items = []T{}
	}
	raw, err := l.codec.Encode(items)
	if err != nil {
		return err
	}
	return l.store.Set(ctx, key, raw)
}

func (l *List[T]) Drop(ctx context.Context, scope string) error {
	key, err := l.Key(scope)
	if err != nil {
		return err
	}
	return l.store.Delete(ctx, key)
}

// Scopes lists the scopes currently holding a value. Fixed lists return nil.
func (l *List[T]) Scopes(ctx context.Context) ([]string, error) {
	if !l.scoped {
		return nil, nil
	}
	keys, err := l.store.Keys(ctx, l.base)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if s, ok := ScopeOf(l.base, k); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Value is a single JSON document under a fixed key.
type Value[T any] struct {
	store       Store
	key         string
	codec       Codec
	onMalformed MalformedHook
}

func NewValue[T any](store Store, key string, codec Codec) *Value[T] {
	return &Value[T]{store: store, key: key, codec: codec}
}

func (v *Value[T]) OnMalformed(hook MalformedHook) *Value[T] {
	v.onMalformed = hook
	return v
}

// Load returns the zero value and false when absent or malformed.
func (v *Value[T]) Load(ctx context.Context) (T, bool, error) {
	var out T
	raw, ok, err := v.store.Get(ctx, v.key)
	if err != nil || !ok {
		return out, false, err
	}
	if err := v.codec.Decode(raw, &out); err != nil {
		if errors.Is(err, ErrMalformed) {
			if v.onMalformed != nil {
				v.onMalformed(v.key, err)
			}
			var zero T
			return zero, false, nil
		}
		return out, false, err
	}
	return out, true, nil
}

func (v *Value[T]) Save(ctx context.Context, val T) error {
	raw, err := v.codec.Encode(val)
	if err != nil {
		return err
	}
	return v.store.Set(ctx, v.key, raw)
}

func (v *Value[T]) Drop(ctx context.Context) error {
	return v.store.Delete(ctx, v.key)
}
