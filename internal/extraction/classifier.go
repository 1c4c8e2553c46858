// Package extraction turns the messages of a recording into per-modality records in one pass.
package extraction

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/roadscope/scene-processing-service/internal/domain/entity"
	"gopkg.in/yaml.v3"
)

// Rule maps any of its tokens, matched as case-insensitive substrings of the declared
// message type, to a modality.
type Rule struct {
	Modality entity.Modality
	Tokens   []string
}

var DefaultRules = []Rule{
	{Modality: entity.ModalityCamera, Tokens: []string{"image"}},
	{Modality: entity.ModalityLidar, Tokens: []string{"pointcloud", "laserscan", "lidar"}},
	{Modality: entity.ModalityTelemetry, Tokens: []string{"navsatfix", "imu", "odometry", "gps", "gnss"}},
	{Modality: entity.ModalityVehicle, Tokens: []string{"vehicle", "steering", "twist", "throttle", "brake", "wheel", "ackermann"}},
}

// Classifier evaluates its rules top to bottom; the first match wins.
type Classifier struct {
	rules []Rule
}

// NewClassifier lowercases the tokens and moves camera rules ahead of all others,
// keeping the relative order within each group.
func NewClassifier(rules []Rule) *Classifier {
	sorted := make([]Rule, 0, len(rules))
	for _, r := range rules {
		tokens := make([]string, 0, len(r.Tokens))
		for _, t := range r.Tokens {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				tokens = append(tokens, t)
			}
		}
		sorted = append(sorted, Rule{Modality: r.Modality, Tokens: tokens})
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Modality == entity.ModalityCamera && sorted[j].Modality != entity.ModalityCamera
	})
	return &Classifier{rules: sorted}
}

var defaultClassifier = NewClassifier(DefaultRules)

// Classify labels a declared wire type with the default rules.
func Classify(declaredType string) entity.Modality {
	return defaultClassifier.Classify(declaredType)
}

func (c *Classifier) Classify(declaredType string) entity.Modality {
	t := strings.ToLower(declaredType)
	for _, r := range c.rules {
		for _, token := range r.Tokens {
			if strings.Contains(t, token) {
				return r.Modality
			}
		}
	}
	return entity.ModalityUnknown
}

type rulesFile struct {
	Rules []struct {
		Modality string   `yaml:"modality"`
		Tokens   []string `yaml:"tokens"`
	} `yaml:"rules"`
}

// LoadRules reads a YAML rules file of the form
//
//	rules:
//	  - modality: camera
//	    tokens: [image]
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classifier rules: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse classifier rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("classifier rules file %s has no rules", path)
	}

	rules := make([]Rule, 0, len(f.Rules))
	for i, r := range f.Rules {
		m, ok := entity.ParseModality(r.Modality)
		if !ok || m == entity.ModalityUnknown {
			return nil, fmt.Errorf("classifier rule %d: unknown modality %q", i, r.Modality)
		}
		if len(r.Tokens) == 0 {
			return nil, fmt.Errorf("classifier rule %d: no tokens", i)
		}
		rules = append(rules, Rule{Modality: m, Tokens: r.Tokens})
	}
	return rules, nil
}
