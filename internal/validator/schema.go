package validator

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// RequestKind identifies a POST body shape accepted by the ingestion API.
type RequestKind string

const (
	RequestSensorData RequestKind = "sensor_data"
	RequestSensorRW   RequestKind = "sensor_rw"
	RequestBatch      RequestKind = "batch_sensor_rw"
)

const deviceIDPattern = `^factory_[0-9]{3}_device_[0-9]{3}$`

var commonProperties = `
	"device_id":   {"type": "string", "pattern": "` + deviceIDPattern + `"},
	"metric_name": {"type": "string", "enum": ["temperature", "pressure", "humidity", "vibration", "voltage", "current", "power", "flow_rate"]},
	"timestamp":   {"type": "string", "format": "date-time"},
	"priority":    {"type": "integer", "minimum": 1, "maximum": 3},
	"data":        {"type": "string", "minLength": 1, "pattern": "^[A-Za-z0-9+/]*={0,2}$"}`

var rwItemSchema = `{
	"type": "object",
	"required": ["device_id", "metric_name", "new_value", "timestamp", "priority", "data"],
	"properties": {` + commonProperties + `,
		"new_value": {"type": "number"}
	}
}`

var requestSchemas = map[RequestKind]string{
	RequestSensorData: `{
		"type": "object",
		"required": ["device_id", "metric_name", "value", "timestamp", "priority", "data"],
		"properties": {` + commonProperties + `,
			"value": {"type": "number"}
		}
	}`,
	RequestSensorRW: rwItemSchema,
	RequestBatch: `{
		"type": "object",
		"required": ["data"],
		"properties": {
			"data": {"type": "array", "minItems": 1, "maxItems": 1000, "items": ` + rwItemSchema + `}
		}
	}`,
}

// RequestContract validates generated request bodies against the JSON
// schemas of the ingestion API before they are sent.
type RequestContract struct {
	schemas map[RequestKind]*gojsonschema.Schema
}

// NewRequestContract compiles the request schemas.
func NewRequestContract() (*RequestContract, error) {
	c := &RequestContract{schemas: make(map[RequestKind]*gojsonschema.Schema, len(requestSchemas))}
	for kind, src := range requestSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", kind, err)
		}
		c.schemas[kind] = schema
	}
	return c, nil
}

// ValidateRequest checks an encoded request body. Each schema error becomes
// one violation.
func (c *RequestContract) ValidateRequest(kind RequestKind, body []byte) Violations {
	var v Violations

	schema, ok := c.schemas[kind]
	if !ok {
		v.addf("no request schema for %q", kind)
		return v
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		v.addf("%s request is not valid JSON: %v", kind, err)
		return v
	}
	for _, re := range result.Errors() {
		v.addf("%s request: %s", kind, re.String())
	}
	return v
}
