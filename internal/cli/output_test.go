package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("E100", "compilation failed", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, "E100", resp.Error.Code)
	assert.Equal(t, "compilation failed", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"file": "model.nao", "line": "42"}
	err := formatter.Error("E204", "missing attributes", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("All targets valid")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "All targets valid")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("E100", "compilation failed", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E100]")
	assert.Contains(t, buf.String(), "compilation failed")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"file": "model.nao"}
	err := formatter.Error("E100", "compilation failed", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E100]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name     string
		verbose  bool
		wantLog  bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Processing %s", "model.nao")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Processing model.nao")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestCLIResponse_JSON(t *testing.T) {
	resp := CLIResponse{
		Status: "ok",
		Data:   map[string]int{"count": 42},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded CLIResponse
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "ok", decoded.Status)
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    "E100",
		Message: "attribute already defined",
		Details: []string{"graph g"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "E100", decoded.Code)
	assert.Equal(t, "attribute already defined", decoded.Message)
}

func TestOutputFormatter_RespondIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Respond(CLIResponse{Status: "ok", PalletID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"status\": \"ok\",\n  \"pallet_id\": \"abc\"\n}\n", buf.String())
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("Compiling %s", "model.nao")
	assert.Empty(t, out.String())
	assert.Equal(t, "Compiling model.nao\n", errOut.String())
	assert.Equal(t, errOut, formatter.GetErrWriter())
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := WrapExitError(ExitFailure, "evaluation failed", errors.New("boom"))
	assert.Equal(t, "evaluation failed: boom", wrapped.Error())
	assert.Equal(t, "boom", errors.Unwrap(wrapped).Error())
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("context: %w", wrapped)))
}

func TestOutputFormatter_IsJSON(t *testing.T) {
	assert.True(t, (&OutputFormatter{Format: FormatJSON}).IsJSON())
	assert.False(t, (&OutputFormatter{Format: FormatText}).IsJSON())
	assert.Equal(t, []string{FormatText, FormatJSON}, ValidFormats)
}

// =============================================================================
// IR documents
// =============================================================================

func TestOutputFormatter_WriteIR(t *testing.T) {
	doc := []byte(`{"packages":[["lib",["_sf_local","x"]]]}`)

	t.Run("canonical", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: FormatText, Writer: buf}

		require.NoError(t, formatter.WriteIR(doc, false))
		assert.Equal(t, string(doc)+"\n", buf.String())
	})

	t.Run("already terminated", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: FormatText, Writer: buf}

		require.NoError(t, formatter.WriteIR(append(append([]byte{}, doc...), '\n'), false))
		assert.Equal(t, string(doc)+"\n", buf.String())
	})

	t.Run("indented", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: FormatText, Writer: buf}

		require.NoError(t, formatter.WriteIR(doc, true))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("{\n  \"packages\": [")))
		assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("}\n")))

		var compact bytes.Buffer
		require.NoError(t, json.Compact(&compact, buf.Bytes()))
		assert.Equal(t, string(doc), compact.String())
	})

	t.Run("corrupt document", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: FormatText, Writer: buf}

		err := formatter.WriteIR([]byte(`{"packages":[`), true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "indent IR")
		assert.Empty(t, buf.String())
	})
}

// =============================================================================
// Problem lists
// =============================================================================

func TestOutputFormatter_ProblemsText(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: FormatText, Writer: buf}

	problems := []CLIError{
		{Code: "E301", Message: "cannot resolve import \"missing\""},
		{Code: "E402", Message: "unknown tag", Details: "packages[0].body"},
	}
	require.NoError(t, formatter.Problems("Compilation failed", problems, problems))

	want := "✗ Compilation failed\n\n" +
		"  E301: cannot resolve import \"missing\"\n\n" +
		"packages[0].body\n" +
		"  E402: unknown tag\n\n"
	assert.Equal(t, want, buf.String())
}

func TestOutputFormatter_ProblemsJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: FormatJSON, Writer: buf}

	problems := []CLIError{
		{Code: "E301", Message: "cannot resolve import \"missing\"", Details: "app"},
		{Code: "E207", Message: "duplicate keyword"},
	}
	require.NoError(t, formatter.Problems("Check failed", problems, map[string]int{"count": 2}))

	var resp struct {
		Status string         `json:"status"`
		Error  *CLIError      `json:"error"`
		Data   map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E301", resp.Error.Code)
	assert.Equal(t, "app", resp.Error.Details)
	assert.Equal(t, 2, resp.Data["count"])
	assert.NotContains(t, buf.String(), "✗")
}
