package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitWriter(t *testing.T) {
	defer Init(false, false)

	var buf bytes.Buffer
	InitWriter(&buf, false, false)
	L().Info().Msg("opened CEL")
	L().Debug().Msg("header decoded")

	out := buf.String()
	if !strings.Contains(out, `"message":"opened CEL"`) {
		t.Errorf("missing info line: %s", out)
	}
	if strings.Contains(out, "header decoded") {
		t.Errorf("debug line written at info level: %s", out)
	}
	if IsPrettyMode() {
		t.Error("IsPrettyMode = true after JSON init")
	}

	buf.Reset()
	InitWriter(&buf, true, true)
	L().Debug().Msg("header decoded")
	if !strings.Contains(buf.String(), "header decoded") {
		t.Errorf("debug line missing at debug level: %s", buf.String())
	}
	if !IsPrettyMode() {
		t.Error("IsPrettyMode = false after human init")
	}
}

func TestWithPhase(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	defer Init(false, false)

	log := WithPhase("cdf_read")
	log.Info().Msg("mapped")

	if !bytes.Contains(buf.Bytes(), []byte(`"phase":"cdf_read"`)) {
		t.Errorf("expected phase field in output, got: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"warn":  zerolog.WarnLevel,
		"":      zerolog.InfoLevel,
		"noisy": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
