package testkit

import "testing"

var seam = "orig"

func TestSwapRestores(t *testing.T) {
	t.Run("swapped", func(t *testing.T) {
		Serial(t)
		Swap(t, &seam, "fake")
		if seam != "fake" {
			t.Fatalf("seam = %q", seam)
		}
	})
	if seam != "orig" {
		t.Fatalf("seam not restored: %q", seam)
	}
}

func TestMustPanicAndContain(t *testing.T) {
	MustPanic(t, func() { panic("boom") })
	MustContain(t, "oai:repo:recid/1", "recid/1")
	if err := Ctx(t).Err(); err != nil {
		t.Fatalf("ctx already done: %v", err)
	}
}
