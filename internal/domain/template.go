package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Template is an ordered list of actions. It is immutable once saved.
type Template struct {
	ID          string
	Name        string
	Description string
	Actions     []Action
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewTemplate validates the draft, sorts its actions by order, and assigns
// ids to actions that have none.
func NewTemplate(name, description string, actions []Action) (*Template, error) {
	t := &Template{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Actions:     append([]Action(nil), actions...),
	}
	if err := t.Validate(defaultActionValidator); err != nil {
		return nil, err
	}
	sort.SliceStable(t.Actions, func(i, j int) bool { return t.Actions[i].Order < t.Actions[j].Order })
	for i := range t.Actions {
		if t.Actions[i].ID == "" {
			t.Actions[i].ID = uuid.NewString()
		}
	}
	return t, nil
}

func (t *Template) Validate(av *ActionValidator) error {
	if n := len(t.Name); n < 3 || n > 100 {
		return invalid(ErrInvalidTemplate, "name", "must be 3 to 100 characters")
	}
	if n := len(t.Description); n < 10 || n > 500 {
		return invalid(ErrInvalidTemplate, "description", "must be 10 to 500 characters")
	}
	if len(t.Actions) == 0 {
		return invalid(ErrInvalidTemplate, "actions", "at least one action is required")
	}
	orders := make(map[int]bool, len(t.Actions))
	ids := make(map[string]bool, len(t.Actions))
	for i, a := range t.Actions {
		if err := av.Validate(a); err != nil {
			return fmt.Errorf("actions[%d]: %w", i, err)
		}
		if orders[a.Order] {
			return invalid(ErrInvalidTemplate, fmt.Sprintf("actions[%d].order", i), fmt.Sprintf("duplicate order %d", a.Order))
		}
		orders[a.Order] = true
		if a.ID != "" {
			if ids[a.ID] {
				return invalid(ErrInvalidTemplate, fmt.Sprintf("actions[%d].id", i), "duplicate id")
			}
			ids[a.ID] = true
		}
	}
	return nil
}

func (t *Template) Len() int { return len(t.Actions) }

// ActionAt returns the action at position i in execution order.
func (t *Template) ActionAt(i int) (Action, bool) {
	if i < 0 || i >= len(t.Actions) {
		return Action{}, false
	}
	return t.Actions[i], true
}

// FindAction returns the position and value of the action with id.
func (t *Template) FindAction(id string) (int, Action, bool) {
	for i, a := range t.Actions {
		if a.ID == id {
			return i, a, true
		}
	}
	return -1, Action{}, false
}
