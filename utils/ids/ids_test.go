package ids_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jrife/regionhost/utils/ids"
	"github.com/oklog/ulid/v2"
)

func TestMustUUID(t *testing.T) {
	if _, err := uuid.Parse(ids.MustUUID()); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}
}

func TestCallIDMonotonic(t *testing.T) {
	last := ids.CallID()

	for i := 0; i < 100; i++ {
		next := ids.CallID()

		if _, err := ulid.Parse(next); err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}

		if next <= last {
			t.Fatalf("expected %s to sort after %s", next, last)
		}

		last = next
	}
}
