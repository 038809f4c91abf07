package jsoncodec_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/regionhost/utils/jsoncodec"
)

type record struct {
	Class  string            `json:"class"`
	Config map[string]string `json:"config,omitempty"`
}

func TestMarshalMatchesStandardLibrary(t *testing.T) {
	data, err := jsoncodec.Marshal(record{Class: "Audit", Config: map[string]string{"b": "2", "a": "1"}})

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	// Map keys are sorted like encoding/json
	if diff := cmp.Diff(`{"class":"Audit","config":{"a":"1","b":"2"}}`, string(data)); diff != "" {
		t.Fatalf(diff)
	}
}

func TestEncodeDecode(t *testing.T) {
	var buffer bytes.Buffer

	if err := jsoncodec.Encode(&buffer, []string{"t1,a,1"}); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	var names []string

	if err := jsoncodec.Decode(&buffer, &names); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff([]string{"t1,a,1"}, names); diff != "" {
		t.Fatalf(diff)
	}
}

func TestUnmarshalError(t *testing.T) {
	var r record

	if err := jsoncodec.Unmarshal([]byte("{"), &r); err == nil {
		t.Fatalf("expected an error")
	}
}
