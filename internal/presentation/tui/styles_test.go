package tui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepHeader(t *testing.T) {
	h := StepHeader(2, "request_grader", "supervisor")
	assert.Contains(t, h, "Request Grader")
	assert.Contains(t, h, "SUPERVISOR")
	assert.Contains(t, h, "[2]")

	assert.NotContains(t, StepHeader(1, "coder", ""), "→")
}

func TestPlainRenderer(t *testing.T) {
	out, err := PlainRenderer("hello\n\n")
	assert.NoError(t, err)
	assert.Equal(t, "hello\n", out)
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3")
	assert.Contains(t, buf.String(), "v1.2.3")
}
