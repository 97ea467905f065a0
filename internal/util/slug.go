// Package util provides small string helpers shared across packages.
package util

import (
	"regexp"
	"strings"
)

var (
	wordSeparatorRe   = regexp.MustCompile(`[\s_/&+]+`)
	nonAlphanumericRe = regexp.MustCompile(`[^a-z0-9-]`)
	multipleDashRe    = regexp.MustCompile(`-+`)
)

// Slug converts a label such as a genre name to a stable keyword slug.
//
//	"Science Fiction"     → "science-fiction"
//	"Action & Adventure"  → "action-adventure"
//	"war_politics"        → "war-politics"
//	"--Drama!--"          → "drama"
//
// Input is expected to be accent-folded already; non-ASCII letters are dropped.
func Slug(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = wordSeparatorRe.ReplaceAllString(s, "-")
	s = nonAlphanumericRe.ReplaceAllString(s, "")
	s = multipleDashRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Chunk splits items into consecutive slices of at most size elements.
// A non-positive size yields a single chunk.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}
