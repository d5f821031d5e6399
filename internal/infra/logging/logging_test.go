//go:build !integration

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithTraceID(context.Background(), "req-42")
	ctx = WithRestaurantID(ctx, "rest-1")
	ctx = WithProvider(ctx, "orange_money")

	With(ctx, &base).Info().Msg("hello")

	line := buf.String()
	for _, want := range []string{`"trace_id":"req-42"`, `"restaurant_id":"rest-1"`, `"provider":"orange_money"`} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %s missing %s", line, want)
		}
	}
}

func TestWithEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	With(context.Background(), &base).Info().Msg("hello")

	line := buf.String()
	for _, field := range []string{"trace_id", "restaurant_id", "provider"} {
		if strings.Contains(line, field) {
			t.Errorf("log line %s should not carry %s", line, field)
		}
	}
}

func TestRedact(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"+243991234567", "+243...67"},
		{"123456", "***"},
		{"", "***"},
	}
	for _, tc := range cases {
		if got := Redact(tc.in); got != tc.want {
			t.Errorf("Redact(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
