package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWithWriter_RespetaNivel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")

	l.Info().Msg("no debe salir")
	assert.Zero(t, buf.Len())

	l.Component("ledger").Warn().Str("lp_id", "lp-1").Msg("faltante")
	out := buf.String()
	assert.Contains(t, out, `"component":"ledger"`)
	assert.Contains(t, out, `"lp_id":"lp-1"`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestNop_NoEscribe(t *testing.T) {
	l := Nop()
	l.Error().Msg("descartado")
	assert.NotNil(t, l.Component("x"))
}
