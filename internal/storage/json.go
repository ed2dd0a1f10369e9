package storage

import "encoding/json"

func unmarshalJSON(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

func marshalJSONIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
