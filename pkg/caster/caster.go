package caster

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Caster converts between websocket message payloads and values.
type Caster[T any] interface {
	From([]byte) (T, error)
	To(T) ([]byte, error)
}

// JSONCaster decodes one JSON document per message. Strict rejects fields
// that T does not declare.
type JSONCaster[T any] struct {
	Strict bool
}

func (jc JSONCaster[T]) From(data []byte) (T, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(data))
	if jc.Strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&v); err != nil {
		return v, errors.Wrap(err, "decoding message")
	}
	if dec.More() {
		return v, errors.New("decoding message: trailing data")
	}
	return v, nil
}

func (jc JSONCaster[T]) To(v T) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encoding message")
	}
	return data, nil
}
