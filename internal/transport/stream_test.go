package transport_test

import (
	"net"
	"testing"
	"time"

	"github.com/couchcryptid/soil-telemetry-service/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeReader(t *testing.T, timeout time.Duration) (net.Conn, *transport.LineReader) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, transport.NewLineReader("test", server, timeout)
}

func TestReadLine_CompleteLines(t *testing.T) {
	writer, lr := pipeReader(t, time.Second)

	go func() {
		writer.Write([]byte("Fósforo:1 | Potássio:0 | Umidade:37.20 | pH (sim):6.32 | Relé:LIGADO\n"))
		writer.Write([]byte("second\n"))
	}()

	line, err := lr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "Fósforo:1 | Potássio:0 | Umidade:37.20 | pH (sim):6.32 | Relé:LIGADO", line)

	line, err = lr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "second", line)
}

func TestReadLine_TrimsCRLF(t *testing.T) {
	writer, lr := pipeReader(t, time.Second)

	go writer.Write([]byte("reading\r\n"))

	line, err := lr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "reading", line)
}

func TestReadLine_TimeoutIsRecoverable(t *testing.T) {
	_, lr := pipeReader(t, 20*time.Millisecond)

	_, err := lr.ReadLine()
	assert.ErrorIs(t, err, transport.ErrReadTimeout)

	// A timeout must not poison the reader.
	_, err = lr.ReadLine()
	assert.ErrorIs(t, err, transport.ErrReadTimeout)
}

func TestReadLine_PartialLineSurvivesTimeout(t *testing.T) {
	writer, lr := pipeReader(t, 50*time.Millisecond)

	go writer.Write([]byte("par"))

	// First call times out holding the partial line.
	_, err := lr.ReadLine()
	require.ErrorIs(t, err, transport.ErrReadTimeout)

	go writer.Write([]byte("tial\n"))

	deadline := time.Now().Add(time.Second)
	for {
		line, err := lr.ReadLine()
		if err == nil {
			assert.Equal(t, "partial", line)
			return
		}
		require.ErrorIs(t, err, transport.ErrReadTimeout)
		require.True(t, time.Now().Before(deadline), "line never completed")
	}
}

func TestReadLine_DisconnectIsFatal(t *testing.T) {
	writer, lr := pipeReader(t, time.Second)

	writer.Close()

	_, err := lr.ReadLine()
	var streamErr *transport.StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, "test", streamErr.Addr)
}

func TestOpen_UnreachableTCP(t *testing.T) {
	_, err := transport.Open("tcp://127.0.0.1:1", 115200, time.Second)
	var streamErr *transport.StreamError
	require.ErrorAs(t, err, &streamErr)
}
