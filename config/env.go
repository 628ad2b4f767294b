// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"os"
	"strings"

	"github.com/z5labs/spanpipe/config/key"
)

// Env represents a Source where its underlying values
// are extracted from environment variables.
type Env struct {
	prefix  string
	environ func() []string
}

// FromEnv returns a Source which applies every environment variable
// starting with prefix followed by an underscore. The prefix is stripped,
// the rest is lower cased and a double underscore separates nested keys:
//
//	SPANPIPE_PROCESSOR__MAX_BATCH_SIZE=64 => processor.max_batch_size: "64"
func FromEnv(prefix string) Env {
	return Env{
		prefix:  prefix,
		environ: os.Environ,
	}
}

// Apply implements the [Source] interface.
func (src Env) Apply(store Store) error {
	prefix := src.prefix + "_"
	for _, pair := range src.environ() {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || !strings.HasPrefix(k, prefix) {
			continue
		}

		name := strings.ToLower(strings.TrimPrefix(k, prefix))
		if name == "" {
			continue
		}

		var chain key.Chain
		for _, part := range strings.Split(name, "__") {
			chain = append(chain, key.Name(part))
		}

		err := store.Set(chain, v)
		if err != nil {
			return err
		}
	}
	return nil
}
