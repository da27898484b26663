package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/okian/botscope/internal/domain/model"
)

const (
	minScore = 0
	maxScore = 100
)

var (
	scoreLine       = regexp.MustCompile(`(?i)anomaly[ _]score[\s*]*[:=][\s*]*(-?\d+)(\.\d+)?`)
	reasoningPrefix = regexp.MustCompile(`(?i)^[\s*#]*reasoning[\s*]*:[\s*]*`)
)

// ParseScore extracts an anomaly score and its reasoning from an oracle reply.
//
// A JSON object (first '{' to last '}') with anomaly_score or score is tried first;
// otherwise the "Anomaly Score: N" line format is used, where N must be an integer.
// JSON numbers are rounded to the nearest integer. The error wraps
// model.ErrParseFailure when neither yields a score in [0,100].
func ParseScore(text string) (int, string, error) {
	if score, reasoning, ok, err := parseJSON(text); ok || err != nil {
		return score, reasoning, err
	}
	return parseLine(text)
}

func parseJSON(text string) (int, string, bool, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return 0, "", false, nil
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return 0, "", false, nil //nolint:nilerr // not JSON, fall back to the line format
	}
	obj := make(map[string]any, len(raw))
	for k, v := range raw {
		obj[strings.TrimSpace(k)] = v
	}

	v, ok := obj["anomaly_score"]
	if !ok {
		v, ok = obj["score"]
	}
	if !ok {
		return 0, "", false, nil
	}
	score, err := toScore(v)
	if err != nil {
		return 0, "", true, err
	}
	reasoning, _ := obj["reasoning"].(string)
	return score, strings.TrimSpace(reasoning), true, nil
}

func parseLine(text string) (int, string, error) {
	loc := scoreLine.FindStringSubmatchIndex(text)
	if loc == nil {
		return 0, "", fmt.Errorf("%w: no anomaly score in reply", model.ErrParseFailure)
	}
	if loc[4] >= 0 {
		return 0, "", fmt.Errorf("%w: anomaly score %q is not an integer", model.ErrParseFailure, text[loc[2]:loc[5]])
	}
	score, err := toScore(text[loc[2]:loc[3]])
	if err != nil {
		return 0, "", err
	}

	rest := text[loc[1]:]
	var reasoning string
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		reasoning = rest[nl+1:]
	} else {
		reasoning = strings.TrimLeft(rest, " *-.,;")
	}
	reasoning = reasoningPrefix.ReplaceAllString(strings.TrimSpace(reasoning), "")
	return score, strings.TrimSpace(reasoning), nil
}

func toScore(v any) (int, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: score %q is not a number", model.ErrParseFailure, t)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: score has type %T", model.ErrParseFailure, v)
	}
	if math.IsNaN(f) || f < minScore || f > maxScore {
		return 0, fmt.Errorf("%w: score %v outside [%d,%d]", model.ErrParseFailure, v, minScore, maxScore)
	}
	return int(math.Round(f)), nil
}
