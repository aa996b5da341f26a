package otel

import (
	"context"
	"testing"
)

func TestSetupDisabledReturnsNoop(t *testing.T) {
	cases := []Options{
		{Enabled: false, Endpoint: "http://localhost:4318"},
		{Enabled: true, Endpoint: ""},
	}
	for _, opts := range cases {
		shutdown, err := Setup(context.Background(), opts)
		if err != nil {
			t.Fatalf("Setup(%+v) error: %v", opts, err)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("noop shutdown error: %v", err)
		}
	}
}
