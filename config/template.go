// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"text/template"

	"github.com/z5labs/spanpipe/internal/try"
)

// TemplateOption configures a [Template].
type TemplateOption func(*Template)

// TemplateFunc registers f under name for use in the template.
func TemplateFunc(name string, f any) TemplateOption {
	return func(t *Template) {
		t.funcs[name] = f
	}
}

// Template is an [io.Reader] yielding the rendered text/template read
// from another reader. The "env" function is always available and
// expands to the named environment variable:
//
//	target: {{env "OTEL_COLLECTOR_TARGET"}}
type Template struct {
	r     io.Reader
	funcs template.FuncMap

	renderOnce sync.Once
	renderErr  error
	buf        bytes.Buffer
}

// RenderTemplate returns a [Template] rendering r on first read.
func RenderTemplate(r io.Reader, opts ...TemplateOption) *Template {
	t := &Template{
		r: r,
		funcs: template.FuncMap{
			"env": os.Getenv,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TemplateError occurs when the config template fails to parse or execute.
type TemplateError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e TemplateError) Error() string {
	return fmt.Sprintf("failed to render config template: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e TemplateError) Unwrap() error {
	return e.Cause
}

// Read implements the [io.Reader] interface.
func (t *Template) Read(b []byte) (int, error) {
	t.renderOnce.Do(func() {
		t.renderErr = t.render()
	})
	if t.renderErr != nil {
		return 0, t.renderErr
	}
	return t.buf.Read(b)
}

func (t *Template) render() (err error) {
	defer try.Close(&err, t.r)

	src, err := io.ReadAll(t.r)
	if err != nil {
		return err
	}

	tmpl, err := template.New("config").Funcs(t.funcs).Parse(string(src))
	if err != nil {
		return TemplateError{Cause: err}
	}

	err = try.Call(func() error {
		return tmpl.Execute(&t.buf, struct{}{})
	})
	if err != nil {
		return TemplateError{Cause: err}
	}
	return nil
}
