package protocol

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	schemaOnce sync.Once
	schemaErr  error
	schemas    map[string]*jsonschema.Schema
)

// schemaFor maps a message type to its schema file.
var schemaFor = map[string]string{
	TypeHello:            "hello.schema.json",
	TypeInitMeetingReq:   "meeting_req.schema.json",
	TypeCancelMeetingReq: "meeting_req.schema.json",
	TypeAcceptTreatyReq:  "meeting_req.schema.json",
	TypeCreateClauseReq:  "clause_req.schema.json",
	TypeRemoveClauseReq:  "clause_req.schema.json",
	TypeCreateClause:     "clause.schema.json",
	TypeRemoveClause:     "clause.schema.json",
	TypeAcceptTreaty:     "accept.schema.json",
	TypeNotify:           "notify.schema.json",
}

func loadSchemas() {
	schemas = map[string]*jsonschema.Schema{}
	for _, name := range schemaFor {
		if _, ok := schemas[name]; ok {
			continue
		}
		raw, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			schemaErr = err
			return
		}
		s, err := jsonschema.CompileString(name, string(raw))
		if err != nil {
			schemaErr = fmt.Errorf("compile %s: %w", name, err)
			return
		}
		schemas[name] = s
	}
}

// Validate checks a raw frame against the schema registered for its type.
// Types without a schema pass.
func Validate(raw []byte) error {
	schemaOnce.Do(loadSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	base, err := DecodeBase(raw)
	if err != nil {
		return err
	}
	name, ok := schemaFor[base.Type]
	if !ok {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return schemas[name].Validate(v)
}
