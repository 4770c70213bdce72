package agentsim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted session, used when no market source is reachable
// or a fixed demo run is wanted.
type Scenario struct {
	Name  string   `yaml:"name"`
	Lines []string `yaml:"lines"`
}

// LoadScenario reads a scripted session from a YAML file.
func LoadScenario(path string) (Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if len(sc.Lines) == 0 {
		return Scenario{}, fmt.Errorf("scenario %s holds no lines", path)
	}
	return sc, nil
}
