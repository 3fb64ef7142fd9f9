package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes shared by every nao command.
//
// A command exits 1 when the code it was pointed at is at fault at run time:
// a test or fixture case failed, evaluation raised a runtime error, a
// check found problems, or an archived pallet no longer matches its ID.
// It exits 2 when it could not do its job at all: the target did not
// compile, a path or archive is missing, or a flag is invalid.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2
)

// Output formats accepted by --format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ExitError carries the exit code a command wants the process to end with.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string // one-line summary, printed by main
	Err     error  // cause, if any
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError creates an ExitError around err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code for err: the code of the first
// ExitError in its chain, ExitFailure otherwise.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter renders command results as text for people or as the
// JSON envelope for tools. Pallet IR itself always goes out unchanged.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose and diagnostic output; Writer when nil
	Verbose   bool
}

// CLIResponse is the JSON envelope every command writes with --format json.
// PalletID is set by commands that produced or read a pallet, so a caller
// can key on the content ID without decoding Data.
type CLIResponse struct {
	Status   string    `json:"status"` // "ok" or "error"
	Data     any       `json:"data,omitempty"`
	Error    *CLIError `json:"error,omitempty"`
	PalletID string    `json:"pallet_id,omitempty"`
}

// CLIError is one diagnostic. Code is the compiler's (E100 syntax, E2xx
// attribute binding, E3xx imports, E4xx IR validation, E501 workspace
// config), the engine's (ASSERTION_FAILED, QUOTA_EXCEEDED, ...) or the
// CLI's own E0xx. Details locates the problem: an IR field path for
// validation errors, the checked target for check.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// IsJSON reports whether output goes out as the JSON envelope.
func (f *OutputFormatter) IsJSON() bool {
	return f.Format == FormatJSON
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.IsJSON() {
		return f.Respond(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs a single diagnostic in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.IsJSON() {
		return f.Respond(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Problems outputs every diagnostic of a failed compilation or check. In
// text each problem is its location (when known) followed by the indented
// code and message; in JSON the first problem is the envelope's error and
// data lists them all.
func (f *OutputFormatter) Problems(title string, problems []CLIError, data any) error {
	if f.IsJSON() {
		resp := CLIResponse{Status: "error", Data: data}
		if len(problems) > 0 {
			first := problems[0]
			resp.Error = &first
		}
		return f.Respond(resp)
	}

	fmt.Fprintln(f.Writer, "✗ "+title)
	fmt.Fprintln(f.Writer)
	for _, p := range problems {
		if p.Details != nil {
			fmt.Fprintf(f.Writer, "%v\n", p.Details)
		}
		fmt.Fprintf(f.Writer, "  %s: %s\n\n", p.Code, p.Message)
	}
	return nil
}

// WriteIR writes an IR document (a pallet or the IR of one file) ending in
// a newline so text output pipes cleanly. Canonical IR is written byte for
// byte unless indent asks for the two-space form people read.
func (f *OutputFormatter) WriteIR(doc []byte, indent bool) error {
	var buf bytes.Buffer
	if indent {
		if err := json.Indent(&buf, doc, "", "  "); err != nil {
			return fmt.Errorf("indent IR: %w", err)
		}
	} else {
		buf.Write(doc)
	}
	if !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
		buf.WriteByte('\n')
	}
	_, err := f.Writer.Write(buf.Bytes())
	return err
}

// Respond writes a full response envelope as indented JSON.
func (f *OutputFormatter) Respond(resp CLIResponse) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}

// VerboseLog writes a progress line when --verbose is set. It goes to the
// diagnostic writer so IR and JSON on Writer stay parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter, or Writer when it is unset.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
