package logger

import (
	"bytes"
	"context"
	"testing"

	kit "oaiserver/internal/platform/testkit"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"trace", "trace"},
		{"debug", "debug"},
		{"info", "info"},
		{"warning", "warn"},
		{"error", "error"},
		{"off", "disabled"},
		{"", "info"},
		{"  nonsense ", "info"},
	}
	for _, c := range cases {
		if got := parseLevel(c.in).String(); got != c.want {
			t.Fatalf("parseLevel(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestInitAndContextFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{
		Level:        "debug",
		Format:       "json",
		Service:      "oaiserver-test",
		Writer:       &buf,
		StaticFields: map[string]string{"build": "test"},
	})

	ctx := WithRequest(context.Background(), "req-1")
	ctx = WithField(ctx, "verb", "ListRecords")
	C(ctx).Info().Msg("served")
	Named("percolator").Warn().Msg("dropped")

	out := buf.String()
	kit.MustContain(t, out, `"request_id":"req-1"`)
	kit.MustContain(t, out, `"verb":"ListRecords"`)
	kit.MustContain(t, out, `"component":"percolator"`)
	kit.MustContain(t, out, `"service":"oaiserver-test"`)
	kit.MustContain(t, out, `"build":"test"`)

	if Named("") != Get() {
		t.Fatalf("Named(\"\") should return the root logger")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("LOG_CALLER", "yes")
	o := FromEnv()
	if o.Level != "warn" || o.Format != "console" || !o.WithCaller || o.Service != "oaiserver" {
		t.Fatalf("FromEnv = %+v", o)
	}
}
