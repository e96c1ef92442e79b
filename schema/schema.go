package schema

import "encoding/json"

// Schema is anything that can be rendered as prompt text
type Schema interface {
	String() string
}

// Stringify renders a schema as prompt text. Nil renders empty.
func Stringify(s Schema) string {
	if s == nil {
		return ""
	}
	if v, ok := s.(String); ok {
		return string(v)
	}
	return s.String()
}

// ToBytes encodes a schema for transport. String is sent as is, other schemas as JSON.
func ToBytes(s Schema) []byte {
	if v, ok := s.(String); ok {
		return []byte(v)
	}
	bs, _ := json.Marshal(s)
	return bs
}
