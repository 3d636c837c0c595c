package platform

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// extractScope returns the raw JSON value at the given dotted path inside a
// JSON document. Paths follow gjson syntax, e.g.
// "__DEFAULT_SCOPE__.webapp\\.video-detail".
func extractScope(doc []byte, path string) ([]byte, error) {
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("document is not valid JSON")
	}
	res := gjson.GetBytes(doc, path)
	if !res.Exists() {
		return nil, fmt.Errorf("path not present")
	}
	return []byte(res.Raw), nil
}
