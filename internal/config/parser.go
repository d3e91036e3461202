package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// headerKeyPrefix marks top-level keys that are sent as request headers,
// e.g. "x-apikey".
const headerKeyPrefix = "x-"

const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["rps", "duration", "vus", "endpoints"],
  "properties": {
    "name": {"type": "string"},
    "rps": {"type": "number", "exclusiveMinimum": 0},
    "duration": {"$ref": "#/definitions/duration"},
    "vus": {"type": "integer", "minimum": 1},
    "maxVus": {"type": "integer", "minimum": 1},
    "endpoints": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "minLength": 1}
    },
    "headers": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    },
    "sleep": {"$ref": "#/definitions/duration"},
    "timeoutExpectations": {
      "type": "object",
      "required": ["connection", "response"],
      "properties": {
        "connection": {"$ref": "#/definitions/duration"},
        "response": {"$ref": "#/definitions/duration"}
      }
    },
    "thresholds": {
      "type": "object",
      "additionalProperties": {"type": "array", "items": {"type": "string"}}
    }
  },
  "definitions": {
    "duration": {"type": "string", "pattern": "^[0-9.]+(ms|s|m)$"}
  }
}`

var compiledSchema = jsonschema.MustCompileString("steadyrate-config.json", documentSchema)

// LoadConfig loads a run configuration from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - anything else -> JSON
//
// Every failure is a *ConfigError.
func LoadConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("failed to read config file: %w", err)}
	}

	return ParseConfig(data, path)
}

// ParseConfig parses and validates configuration data. path is only used
// to pick the format and to label errors.
func ParseConfig(data []byte, path string) (*RunConfig, error) {
	cfg, err := parseConfig(data, path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

func parseConfig(data []byte, path string) (*RunConfig, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, err
		}
		data = converted
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config: %w", err)
	}

	if err := compiledSchema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return nil, schemaErrors(verr)
		}
		return nil, err
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg := fc.toRunConfig(liftHeaderKeys(data))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert YAML config: %w", err)
	}
	return out, nil
}

// schemaErrors flattens a schema validation tree into ValidationErrors.
func schemaErrors(err *jsonschema.ValidationError) *ValidationErrors {
	errs := &ValidationErrors{}

	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			errs.Add(schemaField(e.InstanceLocation), e.Message)
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(err)

	return errs
}

// schemaField turns a JSON pointer such as "/endpoints/0" into
// "endpoints.0".
func schemaField(pointer string) string {
	return strings.TrimLeft(strings.ReplaceAll(pointer, "/", "."), "#.")
}

// liftHeaderKeys collects top-level string values whose key starts with
// "x-", e.g. "x-apikey", to be sent as request headers.
func liftHeaderKeys(data []byte) map[string]string {
	headers := make(map[string]string)

	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if strings.HasPrefix(strings.ToLower(name), headerKeyPrefix) && value.Type == gjson.String {
			headers[name] = value.String()
		}
		return true
	})

	return headers
}

func (fc *fileConfig) toRunConfig(lifted map[string]string) *RunConfig {
	cfg := &RunConfig{
		Name:       fc.Name,
		Endpoints:  fc.Endpoints,
		RPS:        fc.RPS,
		VUs:        fc.VUs,
		MaxVUs:     fc.MaxVUs,
		Headers:    lifted,
		Sleep:      DefaultSleep,
		Thresholds: fc.Thresholds,
	}

	// explicit headers win over lifted x-* keys
	for k, v := range fc.Headers {
		cfg.Headers[k] = v
	}

	if fc.Duration != nil {
		cfg.Duration = time.Duration(*fc.Duration)
	}
	if fc.Sleep != nil {
		cfg.Sleep = time.Duration(*fc.Sleep)
	}
	if cfg.MaxVUs == 0 {
		cfg.MaxVUs = cfg.VUs * 2
	}
	if cfg.Name == "" {
		cfg.Name = "steadyrate"
	}

	if fc.Timeouts != nil && fc.Timeouts.Connection != nil && fc.Timeouts.Response != nil {
		cfg.Timeouts = &TimeoutExpectations{
			Connection: time.Duration(*fc.Timeouts.Connection),
			Response:   time.Duration(*fc.Timeouts.Response),
		}
	}

	if len(cfg.Thresholds) == 0 {
		cfg.Thresholds = DefaultThresholds()
	}

	return cfg
}
