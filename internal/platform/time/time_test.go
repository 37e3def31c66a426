package time

import (
	"testing"
	"time"
)

func TestFixedAndPtr(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if !Fixed(at).Now().Equal(at) {
		t.Fatalf("Fixed clock drifted")
	}
	if Ptr(time.Time{}) != nil {
		t.Fatalf("Ptr(zero) should be nil")
	}
	if p := Ptr(at); p == nil || !p.Equal(at) {
		t.Fatalf("Ptr(at) = %v", p)
	}
	if System.Now().Location() != time.UTC {
		t.Fatalf("System clock should be UTC")
	}
}
