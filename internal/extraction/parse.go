package extraction

import (
	"strings"

	"github.com/antonholmquist/jason"

	"github.com/morse-fitness/morse-worker/internal/errors"
)

// parseReply cuts the model reply down to the span from the first '{' to
// the last '}' and parses it as a JSON object. Models often wrap the JSON in
// prose or code fences.
func parseReply(reply string) (*jason.Object, error) {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end < start {
		return nil, errors.Invalid(component, "no JSON object in model reply")
	}

	obj, err := jason.NewObjectFromBytes([]byte(reply[start : end+1]))
	if err != nil {
		return nil, errors.New(err).
			Component(component).
			Category(errors.CategoryValidation).
			Context("reason", "malformed JSON in model reply").
			Build()
	}
	return obj, nil
}
