package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenJavaScriptToStdout(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewGenCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{schemaPath("robot_subset.json")})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "DO NOT EDIT")
	assert.Contains(t, output, "function move_forward(duration = 1000)")
	assert.Contains(t, output, "function position_async()")
	assert.NotContains(t, output, "✓")
}

func TestGenGoToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "walker", "client.go")

	buf := &bytes.Buffer{}
	cmd := NewGenCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{schemaPath("robot_subset.json"), "--lang", "go", "--package", "walkerclient", "-o", out})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `✓ Generated go stubs for "walker" (2 functions)`)
	assert.Contains(t, buf.String(), "Output written to: "+out)

	code, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(code), "package walkerclient")
	assert.Contains(t, string(code), "func (c *Client) MoveForward(")
}

func TestGenJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewGenCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"robot", "--lang", "javascript"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string    `json:"status"`
		Data   GenResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "robot", resp.Data.API)
	assert.Equal(t, "js", resp.Data.Language)
	assert.Contains(t, resp.Data.Code, "function turn_left(")
}

func TestGenUnsupportedLanguage(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewGenCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"robot", "--lang", "python"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), `unsupported language "python"`)
}

func TestGenInvalidSchema(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewGenCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{schemaPath("invalid.json")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeSchema)
}
