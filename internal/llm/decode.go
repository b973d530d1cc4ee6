package llm

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/tradedocs/internal/common"
)

// DecodeResponse normalizes a raw model reply, validates it against schema and
// decodes it into out. Every failure is a ModelResponseParse AppError.
func DecodeResponse(raw string, schema *jsonschema.Schema, out any) error {
	doc := NormalizeResponse(raw)
	if doc == "" {
		return parseError("no JSON object in model response", nil)
	}
	if err := validateCompiled(schema, []byte(doc)); err != nil {
		return parseError("model response failed schema validation", err)
	}
	if err := json.Unmarshal([]byte(doc), out); err != nil {
		return parseError("decode model response", err)
	}
	return nil
}

func parseError(msg string, cause error) error {
	if cause == nil {
		cause = common.ErrModelResponseParse
	} else {
		cause = fmt.Errorf("%w: %w", common.ErrModelResponseParse, cause)
	}
	return common.NewAppError(common.CodeModelResponseParse, msg, cause)
}
