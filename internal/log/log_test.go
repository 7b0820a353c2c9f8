package log

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

// capture redirects the global logger into a buffer for the test.
func capture(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevLevel := currentMinLevel()
	SetOutput(&buf)
	SetMinLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetMinLevel(prevLevel)
		SetEnabled(true)
	})
	return &buf
}

func TestLog_LineFormat(t *testing.T) {
	buf := capture(t, LevelDebug)

	Info(CatPlace, "Placed", "id", "c1", "outcome", "linked")

	line := regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2} \[INFO\] \[place\] Placed id=c1 outcome=linked\n$`)
	require.Regexp(t, line, buf.String())
}

func TestLog_MinLevelFilters(t *testing.T) {
	buf := capture(t, LevelWarn)

	Debug(CatRebuild, "hidden")
	Info(CatRebuild, "hidden")
	Warn(CatRebuild, "shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "[WARN] [rebuild] shown")
}

func TestLog_Disabled(t *testing.T) {
	buf := capture(t, LevelDebug)
	SetEnabled(false)

	Error(CatRegistry, "dropped")
	require.Empty(t, buf.String())
}

func TestLog_ErrorErrAndOddFields(t *testing.T) {
	buf := capture(t, LevelDebug)

	ErrorErr(CatRegistry, "failed", os.ErrNotExist, "path", "/x")
	require.Contains(t, buf.String(), "path=/x error=file does not exist")

	buf.Reset()
	Info(CatRegistry, "odd", "path")
	require.Contains(t, buf.String(), "path=<missing>")

	buf.Reset()
	ErrorErr(CatRegistry, "failed", nil)
	require.Contains(t, buf.String(), "error=<nil>")
}

func TestLog_InitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexer.log")

	cleanup, err := Init(path)
	require.NoError(t, err)
	Info(CatConfig, "to file")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "[INFO] [config] to file")
}

func TestLevel_String(t *testing.T) {
	require.Equal(t, "DEBUG", LevelDebug.String())
	require.Equal(t, "ERROR", LevelError.String())
	require.Equal(t, "UNKNOWN", Level(42).String())
}
