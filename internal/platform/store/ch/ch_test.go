package ch

import (
	"context"
	"testing"
)

func TestOpenRejectsBadDSN(t *testing.T) {
	if _, err := Open(context.Background(), Config{URL: "::not a dsn::"}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestBuildClientInfo(t *testing.T) {
	ci := BuildClientInfo(" api ", "v1")
	if len(ci.Products) != 5 {
		t.Fatalf("products = %d", len(ci.Products))
	}
	if ci.Products[0].Name != "oaiserver" || ci.Products[1].Version != "api" {
		t.Fatalf("unexpected products %+v", ci.Products)
	}
}
