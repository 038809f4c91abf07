package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

var defaultConfig = sonic.ConfigStd

// Marshal encodes v as JSON
func Marshal(v interface{}) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

// Unmarshal decodes JSON data into v
func Unmarshal(data []byte, v interface{}) error {
	return defaultConfig.Unmarshal(data, v)
}

// Encode writes v to w as JSON
func Encode(w io.Writer, v interface{}) error {
	return defaultConfig.NewEncoder(w).Encode(v)
}

// Decode reads JSON from r into v
func Decode(r io.Reader, v interface{}) error {
	return defaultConfig.NewDecoder(r).Decode(v)
}
