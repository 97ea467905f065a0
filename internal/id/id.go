// Package id generates run identifiers.
package id

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// alphabet avoids characters that are awkward in shell arguments and keys.
const (
	alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	size     = 10
)

// Run returns an identifier of the form "<kind>-<yyyymmdd>-<random>",
// e.g. "etl-20261018-k3v9x0q2ab". IDs sort by date within a kind.
func Run(kind string, now time.Time) (string, error) {
	suffix, err := gonanoid.Generate(alphabet, size)
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return kind + "-" + now.UTC().Format("20060102") + "-" + suffix, nil
}

// RunFunc returns a generator suitable for pipeline configuration. It
// panics if the system has no entropy, which only happens on a broken host.
func RunFunc(kind string, now func() time.Time) func() string {
	return func() string {
		v, err := Run(kind, now())
		if err != nil {
			panic(err)
		}
		return v
	}
}
