package config

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/rxtech-lab/ema-backtest/internal/types"
)

// GenerateSchema generates a JSON schema for Config.
func (c *Config) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch t {
			case reflect.TypeOf(time.Time{}):
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date",
				}
			case reflect.TypeOf(time.Duration(0)):
				return &jsonschema.Schema{
					Type:        "string",
					Description: "Go duration, e.g. 15s",
				}
			case reflect.TypeOf(types.Smoothing("")):
				return &jsonschema.Schema{
					Type: "string",
					Enum: types.AllSmoothings,
				}
			case reflect.TypeOf(ProviderName("")):
				return &jsonschema.Schema{
					Type: "string",
					Enum: AllProviders,
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "ema-backtest-config"
	schema.Description = "Configuration schema for an EMA crossover backtest run"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON generates a JSON schema string for Config.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schemaBytes, err := json.MarshalIndent(c.GenerateSchema(), "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
