package io

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/williampepple1/bindup-e2e/internal/config"
	"github.com/williampepple1/bindup-e2e/pkg/models"
)

// ResultWriter persists run summaries
type ResultWriter struct {
	Config *config.IOConfig
}

// NewResultWriter creates a new result writer
func NewResultWriter(config *config.IOConfig) *ResultWriter {
	return &ResultWriter{
		Config: config,
	}
}

// SaveToFile saves the summary to the configured output file. An empty
// output file disables saving.
func (w *ResultWriter) SaveToFile(summary models.RunSummary) error {
	if w.Config.OutputFile == "" {
		return nil
	}

	switch w.Config.OutputFormat {
	case "json", "":
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(w.Config.OutputFile, data, 0644)

	default:
		return fmt.Errorf("unsupported output format: %s", w.Config.OutputFormat)
	}
}

// LoadFromFile reads a summary written by SaveToFile
func LoadFromFile(filename string) (models.RunSummary, error) {
	var summary models.RunSummary

	data, err := os.ReadFile(filename)
	if err != nil {
		return summary, err
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		return summary, fmt.Errorf("parsing %s: %w", filename, err)
	}
	return summary, nil
}
