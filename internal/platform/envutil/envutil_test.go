package envutil

import (
	"testing"
	"time"
)

func TestReaders(t *testing.T) {
	t.Setenv("LP_STR", "  value ")
	t.Setenv("LP_INT", "x")
	t.Setenv("LP_BOOL", "off")
	t.Setenv("LP_MS", "1500")
	t.Setenv("LP_SEC", "-3")

	if got := String("LP_STR", "d"); got != "value" {
		t.Fatalf("String: %q", got)
	}
	if got := String("LP_UNSET", "d"); got != "d" {
		t.Fatalf("String default: %q", got)
	}
	if got := Int("LP_INT", 7); got != 7 {
		t.Fatalf("Int invalid should default: %d", got)
	}
	if Bool("LP_BOOL", true) {
		t.Fatalf("Bool: off should be false")
	}
	if got := Millis("LP_MS", 0); got != 1500*time.Millisecond {
		t.Fatalf("Millis: %s", got)
	}
	if got := Seconds("LP_SEC", time.Minute); got != time.Minute {
		t.Fatalf("Seconds negative should default: %s", got)
	}
}
