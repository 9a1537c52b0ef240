package cmd

import (
	"bytes"
	"testing"

	"log/slog"

	"github.com/stretchr/testify/require"
)

func TestLoggingWriter(t *testing.T) {
	var out bytes.Buffer
	lw := &LoggingWriter{Name: "guest std-out", Log: Logger(&out, slog.LevelInfo)}

	n, err := lw.Write([]byte("hello\n"))
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.Contains(t, out.String(), `text="hello\n"`)

	out.Reset()
	_, err = lw.Write([]byte{0xDE, 0xAD, 0x01})
	require.NoError(t, err)
	require.Contains(t, out.String(), "data=0xdead01", "binary output is hex encoded")
}

func TestHexU32(t *testing.T) {
	require.Equal(t, "0000beef", HexU32(0xbeef).String())
	b, err := HexU32(0xbeef).MarshalText()
	require.NoError(t, err)
	require.Equal(t, "0000beef", string(b))
}
