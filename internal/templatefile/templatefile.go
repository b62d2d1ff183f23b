// Package templatefile reads journey templates, employees and enrollments
// from YAML.
//
//	journeys:
//	  - name: Onboarding
//	    description: First week for new hires
//	    actions:
//	      - type: email
//	        order: 0
//	        delay: 24h
//	        executionTime: "09:00"
//	        config: {to: ada@example.com, subject: Welcome, body: Hello}
//	employees:
//	  - {name: Ada Lovelace, email: ada@example.com, phone: "+15550001111"}
//	enrollments:
//	  - {employee: ada@example.com, journey: Onboarding, startDate: 2026-03-10}
package templatefile

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
)

type File struct {
	Journeys    []Journey    `yaml:"journeys"`
	Employees   []Employee   `yaml:"employees"`
	Enrollments []Enrollment `yaml:"enrollments"`
}

type Journey struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Actions     []Action `yaml:"actions"`
}

type Action struct {
	ID    string `yaml:"id"`
	Type  string `yaml:"type"`
	Order int    `yaml:"order"`
	// Delay is a Go duration string such as "90m" or "72h".
	Delay         string         `yaml:"delay"`
	ExecutionTime string         `yaml:"executionTime"`
	Description   string         `yaml:"description"`
	Config        map[string]any `yaml:"config"`
}

type Employee struct {
	Name       string `yaml:"name"`
	Email      string `yaml:"email"`
	Phone      string `yaml:"phone"`
	Department string `yaml:"department"`
	Position   string `yaml:"position"`
	HireDate   string `yaml:"hireDate"`
}

// Enrollment refers to its employee by email and its journey by name.
type Enrollment struct {
	Employee  string `yaml:"employee"`
	Journey   string `yaml:"journey"`
	StartDate string `yaml:"startDate"`
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template file: %w", err)
	}
	return Parse(data)
}

// Parse decodes data and checks that every enrollment names a journey and
// an employee declared in the same file.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode template file: %w", err)
	}

	journeys := make(map[string]bool, len(f.Journeys))
	for _, j := range f.Journeys {
		journeys[j.Name] = true
	}
	employees := make(map[string]bool, len(f.Employees))
	for _, e := range f.Employees {
		employees[e.Email] = true
	}
	for i, en := range f.Enrollments {
		if !journeys[en.Journey] {
			return nil, fmt.Errorf("enrollments[%d]: unknown journey %q", i, en.Journey)
		}
		if !employees[en.Employee] {
			return nil, fmt.Errorf("enrollments[%d]: unknown employee %q", i, en.Employee)
		}
	}
	return &f, nil
}

// DomainActions converts the journey's actions. Configs are decoded into
// their channel variant; full validation is left to domain.NewTemplate.
func (j Journey) DomainActions() ([]domain.Action, error) {
	out := make([]domain.Action, 0, len(j.Actions))
	for i, a := range j.Actions {
		da, err := a.toDomain()
		if err != nil {
			return nil, fmt.Errorf("journey %q: actions[%d]: %w", j.Name, i, err)
		}
		out = append(out, da)
	}
	return out, nil
}

func (a Action) toDomain() (domain.Action, error) {
	out := domain.Action{
		ID:            a.ID,
		Type:          domain.ChannelType(a.Type),
		Order:         a.Order,
		ExecutionTime: a.ExecutionTime,
		Description:   a.Description,
	}
	if a.Delay != "" {
		d, err := time.ParseDuration(a.Delay)
		if err != nil {
			return domain.Action{}, fmt.Errorf("delay: %w", err)
		}
		out.Delay = d
	}
	if a.Config == nil {
		return out, nil
	}

	raw, err := json.Marshal(a.Config)
	if err != nil {
		return domain.Action{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := domain.DecodeActionConfig(out.Type, raw)
	if err != nil {
		return domain.Action{}, err
	}
	out.Config = cfg
	return out, nil
}

// ParsedHireDate returns the zero time when no hire date is set.
func (e Employee) ParsedHireDate() (time.Time, error) {
	if e.HireDate == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, e.HireDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("employee %q: hireDate: %w", e.Email, err)
	}
	return t, nil
}

// ParsedStartDate accepts a bare date or an RFC 3339 timestamp.
func (en Enrollment) ParsedStartDate() (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, en.StartDate); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, en.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("enrollment %s/%s: startDate: %w", en.Employee, en.Journey, err)
	}
	return t, nil
}
