package io

import (
	"bufio"
	"os"
	"strings"

	"github.com/williampepple1/bindup-e2e/internal/config"
)

// CaseReader reads the names of the cases to run
type CaseReader struct {
	Config *config.IOConfig
}

// NewCaseReader creates a new case reader
func NewCaseReader(config *config.IOConfig) *CaseReader {
	return &CaseReader{
		Config: config,
	}
}

// ReadFromFile reads case names from a file, one name per line.
// Blank lines and lines starting with # are skipped.
func (r *CaseReader) ReadFromFile(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var names []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" && !strings.HasPrefix(name, "#") {
			names = append(names, name)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return names, nil
}

// GetNames returns args when given, else the names in the configured cases
// file. An empty result selects every registered case.
func (r *CaseReader) GetNames(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if r.Config.CasesFile != "" {
		return r.ReadFromFile(r.Config.CasesFile)
	}
	return nil, nil
}
