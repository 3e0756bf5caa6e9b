package ciservice

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// flexString decodes a JSON string or number into a string. The CI service
// is inconsistent about numeric IDs.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}
