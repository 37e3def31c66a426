package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestHTTPStatusCodeMapping(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrorCodeNotFound, http.StatusNotFound},
		{ErrorCodeInvalidArgument, http.StatusUnprocessableEntity},
		{ErrorCodeDuplicateKey, http.StatusConflict},
		{ErrorCodeConflict, http.StatusConflict},
		{ErrorCodeValidation, http.StatusBadRequest},
		{ErrorCodeJSON, http.StatusBadRequest},
		{ErrorCodeUnavailable, http.StatusServiceUnavailable},
		{ErrorCodeDB, http.StatusInternalServerError},
		{ErrorCodeUnknown, http.StatusInternalServerError},
		{ErrorCodeBadArgument, http.StatusOK},
		{ErrorCodeNoRecordsMatch, http.StatusOK},
		{9999, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatusCode(c.code); got != c.want {
			t.Fatalf("HTTPStatusCode(%v) = %d, want %d", c.code, got, c.want)
		}
	}
}

func TestOAICodeNames(t *testing.T) {
	want := map[ErrorCode]string{
		ErrorCodeBadArgument:             "badArgument",
		ErrorCodeBadResumptionToken:      "badResumptionToken",
		ErrorCodeBadVerb:                 "badVerb",
		ErrorCodeCannotDisseminateFormat: "cannotDisseminateFormat",
		ErrorCodeIDDoesNotExist:          "idDoesNotExist",
		ErrorCodeNoRecordsMatch:          "noRecordsMatch",
		ErrorCodeNoMetadataFormats:       "noMetadataFormats",
		ErrorCodeNoSetHierarchy:          "noSetHierarchy",
	}
	for code, name := range want {
		got, ok := OAICode(code)
		if !ok || got != name {
			t.Fatalf("OAICode(%d) = %q,%v want %q", code, got, ok, name)
		}
	}
	if _, ok := OAICode(ErrorCodeNotFound); ok {
		t.Fatalf("NotFound must not be a protocol code")
	}
	if !IsProtocol(fmt.Errorf("ctx: %w", New(ErrorCodeBadVerb, "x"))) {
		t.Fatalf("IsProtocol should see through fmt wrapping")
	}
}

func TestErrorTypeAndMethods(t *testing.T) {
	var e *Error
	if e.Error() != "<nil>" {
		t.Fatalf("nil *Error render = %q, want <nil>", e.Error())
	}

	e2 := Newf(ErrorCodeJSON, "bad json %d", 12)
	if got := e2.Error(); got != "bad json 12" {
		t.Fatalf("Newf().Error = %q", got)
	}

	src := stderrs.New("root")
	e3 := Wrap(src, ErrorCodeDB, "db failed")
	if stderrs.Unwrap(e3) != src {
		t.Fatalf("Wrap did not keep orig")
	}
	if e3.Error() != "db failed: root" {
		t.Fatalf("Wrap render = %q", e3.Error())
	}
	if Root(e3) != src {
		t.Fatalf("Root = %v", Root(e3))
	}
	if WrapIf(nil, ErrorCodeDB, "x") != nil {
		t.Fatalf("WrapIf(nil) should be nil")
	}

	f := WithOp(WithField(Validationf("bad"), "spec"), "sets.create")
	pe, ok := As(f)
	if !ok || pe.Field() != "spec" || pe.Op() != "sets.create" || pe.Message() != "bad" {
		t.Fatalf("field/op not attached: %+v", pe)
	}
}

func TestWireFromHidesForeignErrors(t *testing.T) {
	w := WireFrom(stderrs.New("dial tcp 10.0.0.1:5432: refused"))
	if w.Code != ErrorCodeUnknown || w.Message != "internal error" {
		t.Fatalf("foreign error leaked: %+v", w)
	}
	w = WireFrom(NotFoundf("set %q", "a"))
	if w.Code != ErrorCodeNotFound || w.Message != `set "a"` {
		t.Fatalf("wire = %+v", w)
	}
	if st, _ := HTTP(nil); st != http.StatusOK {
		t.Fatalf("HTTP(nil) = %d", st)
	}
}

func TestFromPostgres(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"no rows", pgx.ErrNoRows, ErrorCodeNotFound},
		{"unique", &pgconn.PgError{Code: pgErrUniqueViolation}, ErrorCodeDuplicateKey},
		{"check", &pgconn.PgError{Code: pgErrCheckViolation}, ErrorCodeValidation},
		{"canceled stmt", &pgconn.PgError{Code: pgErrQueryCanceled}, ErrorCodeUnavailable},
		{"other pg", &pgconn.PgError{Code: "XX000"}, ErrorCodeDB},
		{"deadline", context.DeadlineExceeded, ErrorCodeUnavailable},
		{"foreign", stderrs.New("boom"), ErrorCodeDB},
		{"already ours", Conflictf("busy"), ErrorCodeConflict},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := CodeOf(FromPostgres(c.err, "op")); got != c.want {
				t.Fatalf("code = %d, want %d", got, c.want)
			}
		})
	}
	if FromPostgres(nil, "x") != nil {
		t.Fatalf("FromPostgres(nil) should be nil")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(Unavailablef("search timed out")) {
		t.Fatalf("Unavailable should be retryable")
	}
	if !Retryable(fmt.Errorf("tx: %w", &pgconn.PgError{Code: pgErrSerializationFailure})) {
		t.Fatalf("serialization failure should be retryable")
	}
	if Retryable(context.Canceled) {
		t.Fatalf("cancel should not be retryable")
	}
	if Retryable(nil) {
		t.Fatalf("nil should not be retryable")
	}
	if !IsRetryable(stderrs.New("ERROR: deadlock detected")) {
		t.Fatalf("deadlock text should be retryable")
	}
}
