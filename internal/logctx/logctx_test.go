package logctx

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestFromContextFallsBack(t *testing.T) {
	//nolint:staticcheck // nil context is part of the contract
	for _, ctx := range []context.Context{nil, context.Background()} {
		var buf bytes.Buffer
		logger := FromContext(ctx).Output(&buf)
		logger.Info().Msg("opened")
		if buf.Len() == 0 {
			t.Error("expected default logger to produce output")
		}
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), zerolog.New(&buf).With().Str("command", "export").Logger())

	logger := FromContext(ctx)
	logger.Info().Msg("export complete")

	if !strings.Contains(buf.String(), `"command":"export"`) {
		t.Errorf("expected command field, got: %s", buf.String())
	}
}

func TestWithLoggerNilContext(t *testing.T) {
	var buf bytes.Buffer
	//nolint:staticcheck // nil context is part of the contract
	ctx := WithLogger(nil, zerolog.New(&buf))
	if ctx == nil {
		t.Fatal("WithLogger(nil, ...) returned nil")
	}
	logger := FromContext(ctx)
	logger.Info().Msg("x")
	if buf.Len() == 0 {
		t.Error("logger from nil-seeded context wrote nothing")
	}
}

func TestChainedFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), zerolog.New(&buf))
	ctx = WithStr(ctx, "input", "s3://arrays/a.CEL")
	ctx = WithInt(ctx, "files", 12)

	logger := FromContext(ctx)
	logger.Info().Msg("batch read")

	out := buf.String()
	for _, want := range []string{`"input":"s3://arrays/a.CEL"`, `"files":12`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestSetDefaultLogger(t *testing.T) {
	prev := DefaultLogger()
	defer SetDefaultLogger(prev)

	var buf bytes.Buffer
	SetDefaultLogger(zerolog.New(&buf).With().Str("default", "yes").Logger())
	logger := FromContext(context.Background())
	logger.Info().Msg("x")

	if !strings.Contains(buf.String(), `"default":"yes"`) {
		t.Errorf("default logger not replaced: %s", buf.String())
	}
}
