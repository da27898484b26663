package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers match them with errors.Is.
var (
	// ErrNotFound means a player, record, or embedding is absent. Non-fatal.
	ErrNotFound = errors.New("not found")
	// ErrParseFailure means an oracle reply did not match the expected grammar. Non-fatal.
	ErrParseFailure = errors.New("parse failure")
	// ErrUpstreamUnavailable means the graph store or the oracle failed or timed out. Non-fatal.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrConfiguration means a required template, schema, or model failed to initialize. Fatal at startup.
	ErrConfiguration = errors.New("configuration failure")
)

// ErrorKind names the taxonomy bucket of err, for reports and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrParseFailure):
		return "parse_failure"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "upstream_unavailable"
	}
}

// Upstream wraps err as ErrUpstreamUnavailable unless it is already classified.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrParseFailure) || errors.Is(err, ErrUpstreamUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstreamUnavailable, err)
}
