package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_ConflictingModes(t *testing.T) {
	cmd := evaluateCmd()
	cmd.SetArgs([]string{"--dry-run", "--publish"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestEvaluate_RejectsMalformedInput(t *testing.T) {
	cmd := evaluateCmd()
	cmd.SetArgs([]string{"--dry-run"})
	cmd.SetIn(strings.NewReader(`{"event_type":"orders/create"}`))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed order event")
}

func TestReadInput_Stdin(t *testing.T) {
	cmd := evaluateCmd()
	cmd.SetIn(strings.NewReader("payload"))

	data, err := readInput(cmd, "-")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"confidence": 100}))
	assert.Equal(t, "{\n  \"confidence\": 100\n}\n", buf.String())
}
