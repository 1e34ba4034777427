package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestTagRunIDTagsGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	defer func() { log.Logger = prev }()
	log.Logger = zerolog.New(&buf)

	tagRunID("abcd1234")
	log.Info().Msg("ping")

	if !strings.Contains(buf.String(), `"run_id":"abcd1234"`) {
		t.Errorf("log output = %s, want run_id field", buf.String())
	}
}
