package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type JSONB[T any] struct {
	Data T
}

func NewJSONB[T any](data T) JSONB[T] {
	return JSONB[T]{Data: data}
}

func (p *JSONB[T]) Scan(src any) error {
	b, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("JSONB.Scan: %w", err)
	}
	if b == nil {
		var zero T
		p.Data = zero
		return nil
	}
	return json.Unmarshal(b, &p.Data)
}

func (p JSONB[T]) Value() (driver.Value, error) {
	return json.Marshal(p.Data)
}

func (p *JSONB[T]) GetValue() T {
	return p.Data
}

// NullJSONB is a JSONB column that may be SQL NULL.
type NullJSONB[T any] struct {
	Data  T
	Valid bool
}

func NewNullJSONB[T any](data *T) NullJSONB[T] {
	if data == nil {
		return NullJSONB[T]{}
	}
	return NullJSONB[T]{Data: *data, Valid: true}
}

func (p *NullJSONB[T]) Scan(src any) error {
	b, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("NullJSONB.Scan: %w", err)
	}
	if b == nil || string(b) == "null" {
		var zero T
		p.Data, p.Valid = zero, false
		return nil
	}
	p.Valid = true
	return json.Unmarshal(b, &p.Data)
}

func (p NullJSONB[T]) Value() (driver.Value, error) {
	if !p.Valid {
		return nil, nil
	}
	return json.Marshal(p.Data)
}

// Ptr returns nil when the column was NULL.
func (p NullJSONB[T]) Ptr() *T {
	if !p.Valid {
		return nil
	}
	data := p.Data
	return &data
}

func jsonBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("expected []byte or string, got %T", src)
	}
}
