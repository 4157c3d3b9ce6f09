package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/platformbuilds/mirador-insights/internal/models"
	"github.com/platformbuilds/mirador-insights/internal/repo"
)

// TemplateRenderer resolves an alert's template and its placeholders.
type TemplateRenderer interface {
	Render(ctx context.Context, alert *models.AlertSpec, interval models.Interval) (*models.RenderedTemplate, error)
}

// TemplateLookup finds templates by name; missing names return
// repo.ErrNotFound.
type TemplateLookup interface {
	FindTemplate(ctx context.Context, name string) (*models.AlertTemplate, error)
}

var (
	placeholderPattern      = regexp.MustCompile(`\$\{([^{}]+)\}`)
	exactPlaceholderPattern = regexp.MustCompile(`^\$\{([^{}]+)\}$`)
)

// AlertTemplateRenderer substitutes ${name} placeholders using the
// template's default properties overlaid by the alert's properties.
type AlertTemplateRenderer struct {
	templates TemplateLookup
}

func NewAlertTemplateRenderer(templates TemplateLookup) *AlertTemplateRenderer {
	return &AlertTemplateRenderer{templates: templates}
}

func (r *AlertTemplateRenderer) Render(ctx context.Context, alert *models.AlertSpec, interval models.Interval) (*models.RenderedTemplate, error) {
	if alert == nil {
		return nil, InvalidRequestError(nil, "alert is required")
	}
	if alert.Template == nil {
		return nil, InvalidRequestError(nil, "alert %s has no template", alertLabel(alert))
	}

	tpl := alert.Template
	if tpl.IsReference() {
		found, err := r.findTemplate(ctx, tpl.Name)
		if err != nil {
			return nil, err
		}
		tpl = found
	}

	props := make(map[string]interface{}, len(tpl.DefaultProperties)+len(alert.TemplateProperties)+2)
	for k, v := range tpl.DefaultProperties {
		props[k] = v
	}
	for k, v := range alert.TemplateProperties {
		props[k] = v
	}
	props["startTime"] = interval.Start
	props["endTime"] = interval.End

	s := &substituter{props: props}
	nodes := make([]map[string]interface{}, 0, len(tpl.Nodes))
	for _, n := range tpl.Nodes {
		nodes = append(nodes, s.value(n).(map[string]interface{}))
	}
	rawMetadata := map[string]interface{}{}
	if tpl.Metadata != nil {
		rawMetadata = s.value(tpl.Metadata).(map[string]interface{})
	}
	if len(s.missing) > 0 {
		return nil, &InsightsError{
			Status:  StatusTemplateMissingProperty,
			Message: fmt.Sprintf("template %s references undefined properties: %s", tpl.Name, strings.Join(s.missingNames(), ", ")),
		}
	}

	var metadata models.AlertMetadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &metadata,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("create metadata decoder: %w", err)
	}
	if err := decoder.Decode(rawMetadata); err != nil {
		return nil, InvalidConfigurationError(err, "template %s has malformed metadata", tpl.Name)
	}

	return &models.RenderedTemplate{
		Name:        tpl.Name,
		Description: tpl.Description,
		Nodes:       nodes,
		Metadata:    metadata,
		Properties:  props,
	}, nil
}

func (r *AlertTemplateRenderer) findTemplate(ctx context.Context, name string) (*models.AlertTemplate, error) {
	if r.templates == nil {
		return nil, NotFoundError(StatusTemplateNotFound, "template %s not found", name)
	}
	tpl, err := r.templates.FindTemplate(ctx, name)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, NotFoundError(StatusTemplateNotFound, "template %s not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("look up template %s: %w", name, err)
	}
	return tpl, nil
}

type substituter struct {
	props   map[string]interface{}
	missing map[string]bool
}

func (s *substituter) value(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return s.str(t)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = s.value(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = s.value(item)
		}
		return out
	default:
		return v
	}
}

// str keeps the property's type when the string is a single placeholder and
// interpolates otherwise.
func (s *substituter) str(in string) interface{} {
	if m := exactPlaceholderPattern.FindStringSubmatch(in); m != nil {
		if v, ok := s.lookup(m[1]); ok {
			return v
		}
		return in
	}
	return placeholderPattern.ReplaceAllStringFunc(in, func(ph string) string {
		name := placeholderPattern.FindStringSubmatch(ph)[1]
		if v, ok := s.lookup(name); ok {
			return fmt.Sprint(v)
		}
		return ph
	})
}

func (s *substituter) lookup(name string) (interface{}, bool) {
	name = strings.TrimSpace(name)
	v, ok := s.props[name]
	if !ok {
		if s.missing == nil {
			s.missing = make(map[string]bool)
		}
		s.missing[name] = true
	}
	return v, ok
}

func (s *substituter) missingNames() []string {
	names := make([]string, 0, len(s.missing))
	for n := range s.missing {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func alertLabel(alert *models.AlertSpec) string {
	switch {
	case alert == nil:
		return "<nil>"
	case alert.ID != "":
		return alert.ID
	case alert.Name != "":
		return alert.Name
	}
	return "<inline>"
}
