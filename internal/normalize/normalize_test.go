package normalize

import (
	"reflect"
	"testing"
)

func TestID(t *testing.T) {
	if got := ID("  user-1 \n"); got != "user-1" {
		t.Fatalf("ID() = %q", got)
	}
}

func TestIDs(t *testing.T) {
	got := IDs([]string{" b", "a", "", "b ", "  "})
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("IDs() = %v", got)
	}
}

func TestBody(t *testing.T) {
	if got := Body("  hello  world \n"); got != "hello  world" {
		t.Fatalf("Body() = %q", got)
	}
}
