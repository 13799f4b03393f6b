package pipeline

import (
	"bytes"
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/hoistlabs/datagate/internal/apperror"
)

// Entity is one candidate document from the request body. The reserved
// "_type" and "_id" keys are always forced from the URL, never trusted from
// the payload.
type Entity map[string]any

// Payload is the normalized request body. The object-vs-array ambiguity of
// the raw body is resolved exactly once here; downstream code always works
// on the ordered Entities slice and uses Batch only to mirror the submitted
// shape in the response.
type Payload struct {
	// Skip is true for methods that carry no write payload (GET, DELETE,
	// OPTIONS, ...). The path params alone drive those requests.
	Skip bool

	// Batch is true when the body was a JSON array.
	Batch bool

	// Entities is the ordered candidate list. Length 1 for a single-object
	// body; array order is preserved for batches.
	Entities []Entity
}

// NormalizePayload validates and normalizes a write request body against the
// parsed path params. All multiplicity and content-type checks happen here,
// before the binder runs, so a rejected request never touches external state.
func NormalizePayload(method, contentType string, body []byte, params PathParams) (Payload, error) {
	// Reads and deletes are driven by path params alone; anything that is
	// not a POST/PUT passes straight through as well (e.g. OPTIONS).
	if method != http.MethodPost && method != http.MethodPut {
		return Payload{Skip: true}, nil
	}

	if !isJSONContentType(contentType) {
		return Payload{}, apperror.NewBadRequest("Content type must be set to application/json")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return Payload{}, apperror.NewBadRequest("no data was sent with the request")
	}

	payload, err := decodeBody(body)
	if err != nil {
		return Payload{}, err
	}

	// Force the URL-derived coordinates onto every entity. A "_type" or
	// "_id" supplied in the body is deliberately overwritten — the URL is
	// the single source of truth for addressing.
	for _, entity := range payload.Entities {
		entity["_type"] = params.ModelType
		if params.ModelID != "" {
			entity["_id"] = params.ModelID
		}
	}

	// Checked after building the list but before the binder is invoked, so
	// an illegal batch never partially mutates external state.
	if params.ModelID != "" && len(payload.Entities) > 1 {
		return Payload{}, apperror.NewBadRequest("posting multiple entities to an id is not allowed")
	}

	return payload, nil
}

// decodeBody resolves the single-object vs array shape of the raw body into
// a uniform entity list.
func decodeBody(body []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(body)

	switch trimmed[0] {
	case '[':
		var entities []Entity
		if err := json.Unmarshal(trimmed, &entities); err != nil {
			return Payload{}, apperror.NewBadRequest("request body must be valid JSON")
		}
		for i := range entities {
			if entities[i] == nil {
				entities[i] = Entity{}
			}
		}
		return Payload{Batch: true, Entities: entities}, nil
	case '{':
		var entity Entity
		if err := json.Unmarshal(trimmed, &entity); err != nil {
			return Payload{}, apperror.NewBadRequest("request body must be valid JSON")
		}
		return Payload{Entities: []Entity{entity}}, nil
	default:
		// Scalars, strings, etc. cannot be annotated with _type/_id.
		return Payload{}, apperror.NewBadRequest("request body must be a JSON object or array of objects")
	}
}

// isJSONContentType reports whether the declared content type is JSON.
// Media type parameters (charset=...) are tolerated, as are +json suffixed
// vendor types.
func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
