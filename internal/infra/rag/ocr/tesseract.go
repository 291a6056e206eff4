// Package ocr extracts text captions from images by shelling out to the
// tesseract binary, the same external dependency the original
// implementation wraps via a Python binding.
package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/yanqian/ai-helloworld/internal/domain/rag"
)

// TesseractOCR invokes an external tesseract process per call.
type TesseractOCR struct {
	cmd string
}

// New constructs a TesseractOCR. cmd is the tesseract binary path or name
// (defaults to "tesseract" on PATH, overridable for non-Docker dev setups).
func New(cmd string) *TesseractOCR {
	if cmd == "" {
		cmd = "tesseract"
	}
	return &TesseractOCR{cmd: cmd}
}

// Extract runs tesseract against stdin-fed image bytes, reading recognized
// text from stdout. "stdin" and "stdout" tell tesseract to read the image
// from its standard input and write plain text to its standard output.
func (o *TesseractOCR) Extract(ctx context.Context, imageBytes []byte) (string, error) {
	cmd := exec.CommandContext(ctx, o.cmd, "stdin", "stdout")
	cmd.Stdin = bytes.NewReader(imageBytes)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &execError{cmd: o.cmd, stderr: stderr.String(), cause: err}
	}

	return strings.TrimSpace(stdout.String()), nil
}

type execError struct {
	cmd    string
	stderr string
	cause  error
}

func (e *execError) Error() string {
	if e.stderr != "" {
		return "ocr: " + e.cmd + ": " + e.stderr
	}
	return "ocr: " + e.cmd + ": " + e.cause.Error()
}

func (e *execError) Unwrap() error { return e.cause }

var _ rag.OCR = (*TesseractOCR)(nil)
