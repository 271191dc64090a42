package commands

import (
	"encoding/json"
	"io"
	"os"

	"github.com/microsoft/cdpsession/pkg/logger"
	"github.com/microsoft/cdpsession/pkg/osutil"
)

func WithNewline(b []byte) []byte {
	return append(b, osutil.LineSep()...)
}

// Writes the error to stderr and the log, flushes the log and exits with the given code.
func ErrorExit(log *logger.Logger, err error, exitCode int) {
	_, _ = os.Stderr.WriteString(err.Error() + string(osutil.LineSep()))
	log.Error(err, "Command failed")
	log.Flush()
	os.Exit(exitCode)
}

// Writes the value as a single line of JSON.
func writeJSONLine(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(WithNewline(b))
	return err
}

// Writes the value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(WithNewline(b))
	return err
}
