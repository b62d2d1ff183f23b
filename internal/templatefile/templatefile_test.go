package templatefile_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
	"github.com/ErlanBelekov/journey-engine/internal/templatefile"
)

const sample = `
journeys:
  - name: Onboarding
    description: First week for new hires
    actions:
      - type: chat
        order: 1
        config:
          to: "+15550001111"
          message: Welcome aboard
      - type: email
        order: 0
        delay: 24h
        executionTime: "09:00"
        config:
          to: ada@example.com
          subject: Welcome
          body: Hello
      - type: api
        order: 2
        delay: 72h
        config:
          url: https://hr.example.com/hooks/onboarded
          method: POST
          headers:
            X-Source: journeys
          body:
            step: 3
employees:
  - name: Ada Lovelace
    email: ada@example.com
    phone: "+15550001111"
    hireDate: 2026-03-09
enrollments:
  - employee: ada@example.com
    journey: Onboarding
    startDate: 2026-03-10
`

func TestParse(t *testing.T) {
	f, err := templatefile.Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, f.Journeys, 1)
	require.Len(t, f.Employees, 1)
	require.Len(t, f.Enrollments, 1)

	actions, err := f.Journeys[0].DomainActions()
	require.NoError(t, err)
	require.Len(t, actions, 3)

	email := actions[1]
	assert.Equal(t, domain.ChannelEmail, email.Type)
	assert.Equal(t, 24*time.Hour, email.Delay)
	assert.Equal(t, "09:00", email.ExecutionTime)
	assert.Equal(t, domain.EmailConfig{To: "ada@example.com", Subject: "Welcome", Body: "Hello"}, email.Config)

	api, ok := actions[2].Config.(domain.APIConfig)
	require.True(t, ok)
	assert.Equal(t, "POST", api.Method)
	assert.Equal(t, "journeys", api.Headers["X-Source"])
	assert.Equal(t, float64(3), api.Body["step"])

	tpl, err := domain.NewTemplate(f.Journeys[0].Name, f.Journeys[0].Description, actions)
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelEmail, tpl.Actions[0].Type)

	hire, err := f.Employees[0].ParsedHireDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), hire)

	start, err := f.Enrollments[0].ParsedStartDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), start)
}

func TestParse_UnknownReferences(t *testing.T) {
	_, err := templatefile.Parse([]byte(`
journeys:
  - name: Onboarding
enrollments:
  - employee: ghost@example.com
    journey: Onboarding
    startDate: 2026-03-10
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown employee")

	_, err = templatefile.Parse([]byte(`
enrollments:
  - employee: ghost@example.com
    journey: Offboarding
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown journey")
}

func TestDomainActions_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		action templatefile.Action
	}{
		{"bad delay", templatefile.Action{Type: "email", Delay: "soon"}},
		{"unknown channel", templatefile.Action{Type: "fax", Config: map[string]any{"to": "x"}}},
		{"mistyped config", templatefile.Action{Type: "chat", Config: map[string]any{"to": 42}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := templatefile.Journey{Name: "Onboarding", Actions: []templatefile.Action{tt.action}}
			_, err := j.DomainActions()
			require.Error(t, err)
		})
	}

	j := templatefile.Journey{Name: "Onboarding", Actions: []templatefile.Action{
		{Type: "chat", Config: map[string]any{"to": 42}},
	}}
	_, err := j.DomainActions()
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "config.to", verr.Field)
}
