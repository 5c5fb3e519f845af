package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

// keepGlobals restores the global logger and level that InitWithWriter
// replaces.
func keepGlobals(t *testing.T) {
	t.Helper()
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestInitWithWriter_FiltersByLevel(t *testing.T) {
	keepGlobals(t)

	var buf bytes.Buffer
	InitWithWriter(&buf, "warn")
	log.Info().Msg("hidden message")
	log.Warn().Str("item", "Beaker").Msg("visible message")

	out := buf.String()
	if strings.Contains(out, "hidden message") {
		t.Fatalf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, "visible message") || !strings.Contains(out, "Beaker") {
		t.Fatalf("warn line missing: %s", out)
	}
}

func TestInitWithWriter_GlobalsRestored(t *testing.T) {
	before := zerolog.GlobalLevel()
	var buf bytes.Buffer
	t.Run("init", func(t *testing.T) {
		keepGlobals(t)
		InitWithWriter(&buf, "error")
	})
	if zerolog.GlobalLevel() != before {
		t.Fatalf("global level leaked: %v", zerolog.GlobalLevel())
	}
	log.Error().Msg("after restore")
	if strings.Contains(buf.String(), "after restore") {
		t.Fatalf("global logger still writes to the test buffer")
	}
}
