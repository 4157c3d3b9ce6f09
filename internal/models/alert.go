package models

// AlertTemplate describes how an alert is evaluated. String values anywhere in
// Nodes and Metadata may carry ${property} placeholders that are resolved at
// render time from DefaultProperties and the alert's TemplateProperties.
type AlertTemplate struct {
	Name              string                   `json:"name" yaml:"name"`
	Description       string                   `json:"description,omitempty" yaml:"description,omitempty"`
	Nodes             []map[string]interface{} `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Metadata          map[string]interface{}   `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	DefaultProperties map[string]interface{}   `json:"defaultProperties,omitempty" yaml:"defaultProperties,omitempty"`
}

// IsReference reports whether the template only names a catalog template.
func (t *AlertTemplate) IsReference() bool {
	return t != nil && t.Description == "" && len(t.Nodes) == 0 &&
		len(t.Metadata) == 0 && len(t.DefaultProperties) == 0
}

// AlertSpec is an alert definition, either submitted inline or saved in the
// catalog under ID.
type AlertSpec struct {
	ID                 string                 `json:"id,omitempty" yaml:"id"`
	Name               string                 `json:"name,omitempty" yaml:"name"`
	Description        string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Template           *AlertTemplate         `json:"template,omitempty" yaml:"template"`
	TemplateProperties map[string]interface{} `json:"templateProperties,omitempty" yaml:"templateProperties,omitempty"`
}

type DatasetRef struct {
	Name string `json:"name" mapstructure:"name"`
}

type DatasourceRef struct {
	Name string `json:"name" mapstructure:"name"`
}

// AlertMetadata is the rendered metadata section of a template.
type AlertMetadata struct {
	Dataset     *DatasetRef    `json:"dataset,omitempty" mapstructure:"dataset"`
	Datasource  *DatasourceRef `json:"datasource,omitempty" mapstructure:"datasource"`
	Granularity string         `json:"granularity,omitempty" mapstructure:"granularity"`
	Timezone    string         `json:"timezone,omitempty" mapstructure:"timezone"`
}

// DatasetName returns the referenced dataset name, or "" when absent.
func (m AlertMetadata) DatasetName() string {
	if m.Dataset == nil {
		return ""
	}
	return m.Dataset.Name
}

// RenderedTemplate is a template with every placeholder substituted.
type RenderedTemplate struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	Nodes       []map[string]interface{} `json:"nodes,omitempty"`
	Metadata    AlertMetadata            `json:"metadata"`
	Properties  map[string]interface{}   `json:"properties,omitempty"`
}
