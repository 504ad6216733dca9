package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/randomizedcoder/go-rwlock-bench/internal/process"
)

// ClientSpec describes one client launched during a scenario.
type ClientSpec struct {
	Name    string       `yaml:"name" json:"name"`
	Mode    process.Mode `yaml:"mode" json:"mode"`
	Threads int          `yaml:"threads,omitempty" json:"threads,omitempty"`
}

// Scenario is one server run with a set of concurrent clients.
type Scenario struct {
	Name     string           `yaml:"name" json:"name"`
	Priority process.Priority `yaml:"priority" json:"priority"`
	Port     int              `yaml:"port,omitempty" json:"port,omitempty"`
	Seed     int64            `yaml:"seed" json:"seed"`
	Clients  []ClientSpec     `yaml:"clients" json:"clients"`
}

// TotalThreads sums the client threads of the scenario.
func (s Scenario) TotalThreads() int {
	total := 0
	for _, c := range s.Clients {
		total += c.Threads
	}
	return total
}

type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// DefaultScenarios returns the four standard shapes: each priority
// policy with a lone writer client and with a concurrent writer/reader
// pair.
func DefaultScenarios() []Scenario {
	var out []Scenario
	for _, prio := range []process.Priority{process.PriorityReader, process.PriorityWriter} {
		out = append(out,
			Scenario{
				Name:     string(prio) + "-priority-writer",
				Priority: prio,
				Clients:  []ClientSpec{{Name: "writer", Mode: process.ModeWriter}},
			},
			Scenario{
				Name:     string(prio) + "-priority-paired",
				Priority: prio,
				Clients: []ClientSpec{
					{Name: "writer", Mode: process.ModeWriter},
					{Name: "reader", Mode: process.ModeReader},
				},
			},
		)
	}
	return out
}

// LoadScenarios reads a YAML scenario file:
//
//	scenarios:
//	  - name: writer-priority-paired
//	    priority: writer
//	    port: 8080
//	    seed: 0
//	    clients:
//	      - {name: writer, mode: writer, threads: 100}
//	      - {name: reader, mode: reader, threads: 100}
func LoadScenarios(path string) ([]Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenarios: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var sf scenarioFile
	if err := dec.Decode(&sf); err != nil {
		return nil, fmt.Errorf("parse scenarios %s: %w", path, err)
	}
	if len(sf.Scenarios) == 0 {
		return nil, fmt.Errorf("scenarios %s: no scenarios defined", path)
	}
	return sf.Scenarios, nil
}

// ResolveScenarios loads or defaults the scenario list, applies the -only
// filter and fills ports, thread counts and client names.
func (c *Config) ResolveScenarios() error {
	var scenarios []Scenario
	switch {
	case len(c.Scenarios) > 0:
		scenarios = c.Scenarios
	case c.ScenariosFile != "":
		loaded, err := LoadScenarios(c.ScenariosFile)
		if err != nil {
			return err
		}
		scenarios = loaded
	default:
		scenarios = DefaultScenarios()
	}

	for i := range scenarios {
		s := &scenarios[i]
		if s.Port == 0 {
			s.Port = c.BasePort + i
		}
		for j := range s.Clients {
			cl := &s.Clients[j]
			if cl.Threads == 0 {
				cl.Threads = c.Threads
			}
			if cl.Name == "" {
				cl.Name = fmt.Sprintf("%s-%d", cl.Mode, j)
			}
		}
	}

	if len(c.Only) > 0 {
		var unknown []string
		for _, name := range c.Only {
			if !slices.ContainsFunc(scenarios, func(s Scenario) bool { return s.Name == name }) {
				unknown = append(unknown, name)
			}
		}
		if len(unknown) > 0 {
			return fmt.Errorf("unknown scenario(s): %s", strings.Join(unknown, ", "))
		}
		scenarios = slices.DeleteFunc(scenarios, func(s Scenario) bool {
			return !slices.Contains(c.Only, s.Name)
		})
	}

	c.Scenarios = scenarios
	return nil
}

// validateScenarios returns one ValidationError per problem found.
func validateScenarios(scenarios []Scenario) []error {
	var errs []error
	if len(scenarios) == 0 {
		return []error{ValidationError{Field: "scenarios", Message: "at least one scenario is required"}}
	}

	seen := make(map[string]bool)
	for i, s := range scenarios {
		field := fmt.Sprintf("scenarios[%d]", i)
		if s.Name == "" {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "must not be empty"})
		} else if seen[s.Name] {
			errs = append(errs, ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate scenario %q", s.Name)})
		}
		seen[s.Name] = true

		if !s.Priority.Valid() {
			errs = append(errs, ValidationError{Field: field + ".priority", Message: fmt.Sprintf("must be reader or writer (got %q)", s.Priority)})
		}
		if s.Port < 1 || s.Port > 65535 {
			errs = append(errs, ValidationError{Field: field + ".port", Message: fmt.Sprintf("must be 1-65535 (got %d)", s.Port)})
		}
		if len(s.Clients) == 0 {
			errs = append(errs, ValidationError{Field: field + ".clients", Message: "at least one client is required"})
		}

		names := make(map[string]bool)
		for j, cl := range s.Clients {
			cf := fmt.Sprintf("%s.clients[%d]", field, j)
			if !cl.Mode.Valid() {
				errs = append(errs, ValidationError{Field: cf + ".mode", Message: fmt.Sprintf("must be reader or writer (got %q)", cl.Mode)})
			}
			if cl.Threads < 1 {
				errs = append(errs, ValidationError{Field: cf + ".threads", Message: "must be at least 1"})
			}
			if names[cl.Name] {
				errs = append(errs, ValidationError{Field: cf + ".name", Message: fmt.Sprintf("duplicate client %q", cl.Name)})
			}
			names[cl.Name] = true
		}
	}
	return errs
}
