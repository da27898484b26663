package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/okian/botscope/internal/domain/model"
)

// writeReports writes one JSON object per line.
func writeReports(w io.Writer, reports []model.Report) error {
	enc := json.NewEncoder(w)
	for _, r := range reports {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("write report %s: %w", r.PlayerID, err)
		}
	}
	return nil
}

func printSummary(w io.Writer, reports []model.Report) {
	for _, r := range reports {
		_, _ = fmt.Fprintf(w, "Player %s: %s\n", r.PlayerID, r.Classification)
	}
}
