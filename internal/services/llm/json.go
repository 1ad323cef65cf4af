package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrParse is returned when model output does not contain a valid JSON object
var ErrParse = errors.New("model response is not valid JSON")

// ExtractJSON decodes the substring from the first '{' to the last '}' of text into v.
// Surrounding prose and code fences are tolerated; nothing else is repaired.
func ExtractJSON(text string, v interface{}) error {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("%w: no JSON object found", ErrParse)
	}

	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	return nil
}
