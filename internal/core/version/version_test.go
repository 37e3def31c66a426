package version

import "testing"

func TestInfo(t *testing.T) {
	bi := Info("")
	if bi.Service != "oaiserver" || bi.Version == "" {
		t.Fatalf("unexpected build info %+v", bi)
	}
	if got := Info("oaiserver-admin").String(); got != "oaiserver-admin dev (none, unknown)" {
		t.Fatalf("String = %q", got)
	}
}
