// Package classify merges the three signal scores into one strict verdict.
package classify

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/okian/botscope/internal/domain/model"
	"github.com/okian/botscope/internal/domain/oracle"
	"github.com/okian/botscope/internal/domain/prompt"
	"github.com/okian/botscope/pkg/logger"
	"github.com/okian/botscope/pkg/metrics"
)

const schemaURL = "mem://botscope/verdict.schema.json"

//go:embed verdict.schema.json
var verdictSchema []byte

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSchema replaces the embedded verdict schema.
func WithSchema(raw []byte) Option {
	return func(c *Classifier) {
		if len(raw) > 0 {
			c.rawSchema = raw
		}
	}
}

// Classifier asks the oracle for a Bot or Human verdict and validates the answer.
type Classifier struct {
	oracle    oracle.TextOracle
	catalog   *prompt.Catalog
	rawSchema []byte
	schema    *jsonschema.Schema
	logger    logger.Logger
}

// New compiles the verdict schema. A schema that does not compile is a configuration failure.
func New(o oracle.TextOracle, catalog *prompt.Catalog, opts ...Option) (*Classifier, error) {
	c := &Classifier{
		oracle:    o,
		catalog:   catalog,
		rawSchema: verdictSchema,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(c.rawSchema)); err != nil {
		return nil, fmt.Errorf("add verdict schema: %w: %w", model.ErrConfiguration, err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile verdict schema: %w: %w", model.ErrConfiguration, err)
	}
	c.schema = schema
	return c, nil
}

// Classify returns the verdict for one player. It never fails the player: when the oracle
// is unreachable or answers off-schema the label is Unclassified and err says why.
func (c *Classifier) Classify(ctx context.Context, playerID string, scores map[model.Signal]model.SignalScore) (model.Verdict, error) {
	if !anyPresent(scores) {
		return unclassified("no signal scores available"), nil
	}

	text, err := c.catalog.Classify(scores)
	if err != nil {
		return unclassified("classification prompt could not be rendered"),
			fmt.Errorf("classify prompt: %w: %w", model.ErrConfiguration, err)
	}

	reply, err := c.oracle.Complete(ctx, text)
	if err != nil {
		return unclassified(fmt.Sprintf("classification oracle unavailable: %v", err)), model.Upstream("classify oracle", err)
	}

	v, err := c.Parse(reply)
	if err != nil {
		metrics.RecordParseFailure("classification")
		c.logger.Warn(ctx, "verdict rejected",
			logger.String("player_id", playerID),
			logger.Error(err),
		)
		out := unclassified(fmt.Sprintf("verdict did not match the expected schema: %v", err))
		out.Raw = reply
		return out, err
	}
	return v, nil
}

// Parse validates a reply against the verdict schema.
func (c *Classifier) Parse(reply string) (model.Verdict, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return model.Verdict{}, fmt.Errorf("%w: no JSON object in verdict", model.ErrParseFailure)
	}
	body := []byte(reply[start : end+1])

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return model.Verdict{}, fmt.Errorf("%w: decode verdict: %w", model.ErrParseFailure, err)
	}
	if err := c.schema.Validate(payload); err != nil {
		return model.Verdict{}, fmt.Errorf("%w: %w", model.ErrParseFailure, err)
	}

	// Read the validated keys exactly; decoding into a struct would match keys by case fold.
	obj, _ := payload.(map[string]any)
	label, _ := obj["classification"].(string)
	confidence, _ := obj["confidence"].(float64)
	reasoning, _ := obj["reasoning"].(string)
	return model.Verdict{
		Label:      label,
		Confidence: model.Float64Ptr(confidence),
		Reasoning:  strings.TrimSpace(reasoning),
		Raw:        reply,
	}, nil
}

func anyPresent(scores map[model.Signal]model.SignalScore) bool {
	for _, s := range scores {
		if s.Present() {
			return true
		}
	}
	return false
}

func unclassified(reason string) model.Verdict {
	return model.Verdict{Label: model.LabelUnclassified, Reasoning: reason}
}
