// Package oracle defines the reasoning-oracle capability and its resilience decorator.
//
// All judgments in botscope come from an external text generator. The pipeline only
// ever sees TextOracle; concrete backends live in internal/adapters/oracle.
package oracle

import "context"

// TextOracle completes a prompt with free text.
type TextOracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Func adapts a function to TextOracle.
type Func func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
