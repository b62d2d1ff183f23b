package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type ChannelType string

const (
	ChannelEmail ChannelType = "email"
	ChannelChat  ChannelType = "chat"
	ChannelAPI   ChannelType = "api"
)

func (c ChannelType) Valid() bool {
	switch c {
	case ChannelEmail, ChannelChat, ChannelAPI:
		return true
	}
	return false
}

// ActionConfig is the channel specific payload of an action. The set of
// implementations is closed: EmailConfig, ChatConfig and APIConfig.
type ActionConfig interface {
	Channel() ChannelType
	actionConfig()
}

type EmailConfig struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body" validate:"required"`
}

type ChatConfig struct {
	To      string `json:"to" validate:"required,chat_recipient"`
	Message string `json:"message" validate:"required"`
}

type APIConfig struct {
	URL     string            `json:"url" validate:"required,url"`
	Method  string            `json:"method" validate:"required,api_method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    map[string]any    `json:"body,omitempty"`
}

func (EmailConfig) Channel() ChannelType { return ChannelEmail }
func (ChatConfig) Channel() ChannelType  { return ChannelChat }
func (APIConfig) Channel() ChannelType   { return ChannelAPI }

func (EmailConfig) actionConfig() {}
func (ChatConfig) actionConfig()  {}
func (APIConfig) actionConfig()   {}

// Action is one step of a journey template.
type Action struct {
	ID    string
	Type  ChannelType
	Order int
	// Delay is measured from the moment the previous step completed.
	Delay time.Duration
	// ExecutionTime is an optional HH:mm time of day the step snaps to.
	ExecutionTime string
	Description   string
	Config        ActionConfig
}

type actionJSON struct {
	ID            string          `json:"id,omitempty"`
	Type          ChannelType     `json:"type"`
	Config        json.RawMessage `json:"config"`
	Order         int             `json:"order"`
	Delay         int64           `json:"delay"`
	ExecutionTime string          `json:"executionTime,omitempty"`
	Description   string          `json:"description,omitempty"`
}

// MarshalJSON encodes delay as whole seconds.
func (a Action) MarshalJSON() ([]byte, error) {
	var cfg json.RawMessage
	if a.Config != nil {
		raw, err := json.Marshal(a.Config)
		if err != nil {
			return nil, fmt.Errorf("marshal action config: %w", err)
		}
		cfg = raw
	}
	return json.Marshal(actionJSON{
		ID:            a.ID,
		Type:          a.Type,
		Config:        cfg,
		Order:         a.Order,
		Delay:         int64(a.Delay / time.Second),
		ExecutionTime: a.ExecutionTime,
		Description:   a.Description,
	})
}

// UnmarshalJSON decodes config into the variant named by type. An unknown
// type leaves Config nil so that Validate can report it.
func (a *Action) UnmarshalJSON(data []byte) error {
	var w actionJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*a = Action{
		ID:            w.ID,
		Type:          w.Type,
		Order:         w.Order,
		Delay:         time.Duration(w.Delay) * time.Second,
		ExecutionTime: w.ExecutionTime,
		Description:   w.Description,
	}
	if !w.Type.Valid() || len(w.Config) == 0 || string(w.Config) == "null" {
		return nil
	}
	cfg, err := DecodeActionConfig(w.Type, w.Config)
	if err != nil {
		return err
	}
	a.Config = cfg
	return nil
}

// DecodeActionConfig decodes raw JSON into the config variant for channel.
func DecodeActionConfig(channel ChannelType, raw []byte) (ActionConfig, error) {
	var (
		cfg ActionConfig
		err error
	)
	switch channel {
	case ChannelEmail:
		var c EmailConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case ChannelChat:
		var c ChatConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case ChannelAPI:
		var c APIConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	default:
		return nil, invalid(ErrInvalidAction, "type", fmt.Sprintf("unknown channel %q", channel))
	}
	if err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, invalid(ErrInvalidAction, "config."+typeErr.Field, "must be "+typeErr.Type.String())
		}
		return nil, invalid(ErrInvalidAction, "config", err.Error())
	}
	return cfg, nil
}

// ActionValidator checks actions against the channel catalog. It is safe for
// concurrent use and holds no state beyond its construction options.
type ActionValidator struct {
	v *validator.Validate
}

type ActionValidatorOption func(*actionValidatorOptions)

type actionValidatorOptions struct {
	methods []string
}

// WithAPIMethods restricts the HTTP methods accepted for api actions.
func WithAPIMethods(methods ...string) ActionValidatorOption {
	return func(o *actionValidatorOptions) { o.methods = methods }
}

func NewActionValidator(opts ...ActionValidatorOption) *ActionValidator {
	o := actionValidatorOptions{methods: DefaultAPIMethods}
	for _, opt := range opts {
		opt(&o)
	}
	allowed := make([]string, len(o.methods))
	for i, m := range o.methods {
		allowed[i] = strings.ToUpper(m)
	}

	v := newStructValidator()
	_ = v.RegisterValidation("api_method", func(fl validator.FieldLevel) bool {
		return slices.Contains(allowed, fl.Field().String())
	})
	return &ActionValidator{v: v}
}

var defaultActionValidator = NewActionValidator()

// ValidateAction checks a against the default catalog.
func ValidateAction(a Action) error {
	return defaultActionValidator.Validate(a)
}

// Validate returns nil or a ValidationError of kind ErrInvalidAction naming
// the first offending field.
func (av *ActionValidator) Validate(a Action) error {
	if !a.Type.Valid() {
		return invalid(ErrInvalidAction, "type", fmt.Sprintf("unknown channel %q", a.Type))
	}
	if a.Config == nil {
		return invalid(ErrInvalidAction, "config", "required")
	}
	if a.Config.Channel() != a.Type {
		return invalid(ErrInvalidAction, "config", fmt.Sprintf("%s config on %s action", a.Config.Channel(), a.Type))
	}
	if err := av.v.Struct(a.Config); err != nil {
		return fieldError(ErrInvalidAction, err, "config.")
	}
	if a.Order < 0 {
		return invalid(ErrInvalidAction, "order", "must not be negative")
	}
	if a.Delay < 0 {
		return invalid(ErrInvalidAction, "delay", "must not be negative")
	}
	if a.ExecutionTime != "" && !clockPattern.MatchString(a.ExecutionTime) {
		return invalid(ErrInvalidAction, "executionTime", "must be HH:mm")
	}
	return nil
}
