package main

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	cause := errors.New("timeout")
	tests := []struct {
		err  error
		want string
	}{
		{&NotFoundError{Schema: "public", Table: "users"}, "could not find table public.users in schema text"},
		{&MetadataQueryError{Op: "indexes", Schema: "app", Table: "t", Err: cause}, "query indexes for app.t: timeout"},
		{&InvalidIdentifierError{Kind: "column", Name: "a;b", Reason: "bad"}, `invalid column identifier "a;b": bad`},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestMetadataQueryErrorUnwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := fmt.Errorf("plan: %w", &MetadataQueryError{Op: "foreign keys", Err: cause})
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(%v, cause) = false", err)
	}

	var mq *MetadataQueryError
	if !errors.As(err, &mq) {
		t.Errorf("errors.As(%v, *MetadataQueryError) = false", err)
	}
}
