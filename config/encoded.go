// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/z5labs/spanpipe/internal/try"

	"gopkg.in/yaml.v3"
)

// Encoded is a [Source] parsed from an [io.Reader] holding an encoded
// document. The reader is closed after Apply if it is an [io.Closer].
type Encoded struct {
	r         io.Reader
	format    string
	unmarshal func([]byte, any) error
}

// FromYaml returns a [Source] reading a YAML document from r.
func FromYaml(r io.Reader) Encoded {
	return Encoded{r: r, format: "yaml", unmarshal: yaml.Unmarshal}
}

// FromJson returns a [Source] reading a JSON document from r.
func FromJson(r io.Reader) Encoded {
	return Encoded{r: r, format: "json", unmarshal: json.Unmarshal}
}

// InvalidDocumentError occurs if the underlying [io.Reader] does not hold
// a valid document of the expected format.
type InvalidDocumentError struct {
	Format string
	Cause  error
}

// Error implements the [builtin.error] interface.
func (e InvalidDocumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Format, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidDocumentError) Unwrap() error {
	return e.Cause
}

// Apply implements the [Source] interface.
func (src Encoded) Apply(store Store) (err error) {
	defer try.Close(&err, src.r)

	b, err := io.ReadAll(src.r)
	if err != nil {
		return err
	}

	m := make(map[string]any)
	err = src.unmarshal(b, &m)
	if err != nil {
		return InvalidDocumentError{Format: src.format, Cause: err}
	}
	return Map(m).Apply(store)
}
