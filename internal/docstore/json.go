package docstore

import "encoding/json"

func marshalRow(row *Row) ([]byte, error) { return json.Marshal(row) }

func unmarshalRow(data []byte, row *Row) error { return json.Unmarshal(data, row) }
