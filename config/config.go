// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config merges the settings of a span pipeline deployment from
// ordered sources (maps, YAML, JSON and prefixed environment variables)
// and decodes them into structs tagged with `config:"..."`.
package config

import (
	"fmt"

	"github.com/z5labs/spanpipe/config/key"

	"github.com/go-viper/mapstructure/v2"
)

// Store receives the key value pairs of a [Source].
type Store interface {
	Set(key.Keyer, any) error
}

// Source writes its settings into a [Store].
type Source interface {
	Apply(Store) error
}

// Manager holds the merged result of one or more [Source]s.
type Manager struct {
	store Map
}

// Read applies every source, in order, to an empty store. Later sources
// override earlier ones, so callers list defaults first and flags last.
func Read(srcs ...Source) (*Manager, error) {
	store := make(Map)
	for _, src := range srcs {
		err := src.Apply(store)
		if err != nil {
			return nil, err
		}
	}
	return &Manager{store: store}, nil
}

// DecodeError is returned by [Manager.Unmarshal] when a merged value
// cannot be converted to the type of the field it is decoded into.
type DecodeError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e DecodeError) Error() string {
	return fmt.Sprintf("failed to decode config: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e DecodeError) Unwrap() error {
	return e.Cause
}

// Unmarshal decodes the merged config into v, which must be a pointer to
// a struct tagged with `config:"..."`. Fields left unset by every source
// keep the value they had, so v may be pre-populated with defaults.
//
// Values coming from env vars and flags are strings; they are converted
// to numbers and bools, to durations like "5s" and to any type
// implementing [encoding.TextUnmarshaler].
func (m *Manager) Unmarshal(v any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "config",
		Result:           v,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
		),
	})
	if err != nil {
		return err
	}

	err = dec.Decode(map[string]any(m.store))
	if err != nil {
		return DecodeError{Cause: err}
	}
	return nil
}
