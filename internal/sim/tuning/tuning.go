package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	CeaseFireTurns int `yaml:"ceasefire_turns"`
	ContactTurns   int `yaml:"contact_turns"`
	DiplCostPct    int `yaml:"dipl_cost_pct"`

	TurnSeconds int `yaml:"turn_seconds"`
	MaxQueue    int `yaml:"max_queue"`

	RateLimits RateLimits `yaml:"rate_limits"`
}

type RateLimits struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

func Default() Tuning {
	var t Tuning
	t.applyDefaults()
	return t
}

func (t *Tuning) applyDefaults() {
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = "1.0"
	}
	if t.CeaseFireTurns <= 0 {
		t.CeaseFireTurns = 16
	}
	if t.ContactTurns <= 0 {
		t.ContactTurns = 10
	}
	if t.DiplCostPct < 0 {
		t.DiplCostPct = 0
	}
	if t.MaxQueue <= 0 {
		t.MaxQueue = 64
	}
	if t.RateLimits.RequestsPerSecond <= 0 {
		t.RateLimits.RequestsPerSecond = 20
	}
	if t.RateLimits.Burst <= 0 {
		t.RateLimits.Burst = 40
	}
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.DiplCostPct > 100 {
		return t, fmt.Errorf("tuning.yaml: dipl_cost_pct %d out of range", t.DiplCostPct)
	}
	t.applyDefaults()
	return t, nil
}
