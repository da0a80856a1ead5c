package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	vybiumpep "github.com/vybium/vybium-pep/pkg/vybium-pep"
)

// Scenario is a YAML run description:
//
//	method: douglas_rachford
//	params:
//	  alpha: 0.5
//	  n: 4
//	config:
//	  tolerance: 1e-9
type Scenario struct {
	Method string             `yaml:"method"`
	Params map[string]float64 `yaml:"params"`
	Config yaml.Node          `yaml:"config"`
}

func parseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return &s, nil
}

func loadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	return parseScenario(data)
}

// overlay decodes the config section over cfg; fields it does not set are kept
func (s *Scenario) overlay(cfg *vybiumpep.Config) error {
	if s.Config.Kind == 0 {
		return nil
	}
	if err := s.Config.Decode(cfg); err != nil {
		return fmt.Errorf("scenario config: %w", err)
	}
	return nil
}

// parseParams parses name=value pairs; later pairs win
func parseParams(pairs []string) (vybiumpep.Params, error) {
	out := make(vybiumpep.Params, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter %q: expected name=value", pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func formatParams(p vybiumpep.Params) string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%g", name, p[name])
	}
	return strings.Join(parts, " ")
}
