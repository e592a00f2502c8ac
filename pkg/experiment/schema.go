package experiment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const configSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["experiment", "pavlovia"],
	"properties": {
		"experiment": {
			"type": "object",
			"required": ["name", "fullpath"],
			"properties": {
				"name": {"type": "string"},
				"fullpath": {"type": "string"},
				"status": {"type": "string"},
				"saveIncompleteResults": {"type": "boolean"}
			}
		},
		"pavlovia": {
			"type": "object",
			"required": ["URL"],
			"properties": {
				"URL": {"type": "string"}
			}
		},
		"runMode": {"type": "string"}
	}
}`

var (
	configSchema  = mustCompileSchema(configSchemaJSON, "config.schema.json")
	schemaPrinter = message.NewPrinter(language.English)
)

func mustCompileSchema(raw, name string) *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}
	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// validateDocument checks a configuration document against the schema and
// returns one error per violation.
func validateDocument(data []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return err
	}
	err = configSchema.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	var msgs []string
	collectViolations(ve, &msgs)
	errs := make([]error, 0, len(msgs))
	for _, m := range msgs {
		errs = append(errs, errors.New(m))
	}
	return errors.Join(errs...)
}

func collectViolations(ve *jsonschema.ValidationError, msgs *[]string) {
	if len(ve.Causes) > 0 {
		for _, c := range ve.Causes {
			collectViolations(c, msgs)
		}
		return
	}

	if req, ok := ve.ErrorKind.(*kind.Required); ok {
		for _, field := range req.Missing {
			*msgs = append(*msgs, missingFieldMessage(ve.InstanceLocation, field))
		}
		return
	}

	loc := "/" + strings.Join(ve.InstanceLocation, "/")
	*msgs = append(*msgs, fmt.Sprintf("invalid %s in configuration: %s", loc, ve.ErrorKind.LocalizedString(schemaPrinter)))
}

// missingFieldMessage names the missing field relative to its enclosing block.
func missingFieldMessage(location []string, field string) string {
	if len(location) == 0 {
		return fmt.Sprintf("missing %s block in configuration", field)
	}
	return fmt.Sprintf("missing %s in %s block in configuration", field, strings.Join(location, "."))
}
