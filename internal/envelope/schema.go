// SPDX-License-Identifier: AGPL-3.0-or-later

package envelope

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// SchemaID identifies the published envelope schema.
const SchemaID = "https://github.com/bartekus/skillkit/schemas/skill-output.schema.json"

// Schema returns the JSON Schema describing Envelope.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	s := reflector.Reflect(&Envelope{})
	s.ID = jsonschema.ID(SchemaID)
	s.Title = "Skill output envelope"
	return s
}

// SchemaJSON returns the indented schema document.
func SchemaJSON() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}
