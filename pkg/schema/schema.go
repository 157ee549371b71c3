// Package schema loads subject definitions from YAML and builds model
// subjects from them. A definition file declares subjects and their typed
// properties:
//
//	subjects:
//	  - name: sensor
//	    properties:
//	      - key: power
//	        type: float64
//	        unit: W
//	        min: 0
//	        max: 10000
//	      - key: label
//	        type: string
//	        default: ""
package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/observekit/observe-go/pkg/model"
)

// SubjectDef declares one subject and its properties.
type SubjectDef struct {
	Name       string        `yaml:"name"`
	Properties []PropertyDef `yaml:"properties"`
}

// PropertyDef declares one typed property.
type PropertyDef struct {
	Key         string `yaml:"key"`
	Type        string `yaml:"type"`
	Nullable    bool   `yaml:"nullable"`
	Default     any    `yaml:"default"`
	Min         any    `yaml:"min"`
	Max         any    `yaml:"max"`
	Unit        string `yaml:"unit"`
	Description string `yaml:"description"`
}

// defFile represents the top-level YAML structure of a definition file.
type defFile struct {
	Subjects []SubjectDef `yaml:"subjects"`
}

// ParseSubjectDefs parses YAML definition data.
func ParseSubjectDefs(data []byte) ([]SubjectDef, error) {
	var f defFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	for _, def := range f.Subjects {
		if err := def.check(); err != nil {
			return nil, err
		}
	}
	return f.Subjects, nil
}

// LoadSubjectDefs reads and parses a YAML definition file.
func LoadSubjectDefs(path string) ([]SubjectDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defs, err := ParseSubjectDefs(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// check validates a definition before any subject is built.
func (d SubjectDef) check() error {
	if d.Name == "" {
		return fmt.Errorf("subject with no name")
	}
	if len(d.Properties) == 0 {
		return fmt.Errorf("subject %s: no properties", d.Name)
	}
	for _, p := range d.Properties {
		if p.Key == "" {
			return fmt.Errorf("subject %s: property with no key", d.Name)
		}
		if _, ok := dataTypeFromString(p.Type); !ok {
			return fmt.Errorf("subject %s: property %s: unknown type %q", d.Name, p.Key, p.Type)
		}
	}
	return nil
}

// Build constructs a model subject from the definition.
func (d SubjectDef) Build() (*model.Subject, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	metas := make([]*model.PropertyMetadata, len(d.Properties))
	for i, p := range d.Properties {
		typ, _ := dataTypeFromString(p.Type)
		meta := &model.PropertyMetadata{
			Key:         p.Key,
			Type:        typ,
			Nullable:    p.Nullable,
			Default:     normalizeDefault(typ, p.Default),
			MinValue:    p.Min,
			MaxValue:    p.Max,
			Unit:        p.Unit,
			Description: p.Description,
		}
		// A default escapes Set-time validation (it becomes the initial
		// observed value directly), so it must pass the same checks here.
		if meta.Default != nil {
			if err := meta.Validate(meta.Default); err != nil {
				return nil, fmt.Errorf("subject %s: property %s: invalid default: %w", d.Name, p.Key, err)
			}
		}
		metas[i] = meta
	}
	return model.New(d.Name, metas...), nil
}

// dataTypeFromString maps a YAML type name to a model data type. An empty
// name means untyped.
func dataTypeFromString(name string) (model.DataType, bool) {
	switch name {
	case "", "any":
		return model.DataTypeAny, true
	case "bool":
		return model.DataTypeBool, true
	case "int":
		return model.DataTypeInt, true
	case "int64":
		return model.DataTypeInt64, true
	case "uint64":
		return model.DataTypeUint64, true
	case "float64":
		return model.DataTypeFloat64, true
	case "string":
		return model.DataTypeString, true
	case "bytes":
		return model.DataTypeBytes, true
	case "array":
		return model.DataTypeArray, true
	default:
		return model.DataTypeUnknown, false
	}
}

// normalizeDefault widens YAML-decoded defaults to the property's value
// type, so a float64 property declared with "default: 0" starts at 0.0.
func normalizeDefault(typ model.DataType, def any) any {
	if def == nil {
		return nil
	}
	if typ == model.DataTypeFloat64 {
		if n, ok := def.(int); ok {
			return float64(n)
		}
	}
	return def
}
