package channel

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFrameSequence(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte(`{"a":1}`)))
	require.NoError(t, writeFrame(&buf, []byte(`{"b":2}`)))

	r := bufio.NewReader(&buf)
	first, err := readFrame(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(first))

	second, err := readFrame(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":2}`, string(second))
}

func TestReadFrameIgnoresOtherHeaders(t *testing.T) {
	input := "Content-Type: application/json\r\ncontent-length: 2\r\n\r\n{}"
	body, err := readFrame(bufio.NewReader(strings.NewReader(input)))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(body))
}

func TestReadFrameErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing length", "X-Other: 1\r\n\r\n{}"},
		{"bad length", "Content-Length: abc\r\n\r\n{}"},
		{"too large", "Content-Length: 999999999\r\n\r\n"},
		{"short body", "Content-Length: 10\r\n\r\n{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readFrame(bufio.NewReader(strings.NewReader(tt.input)))
			assert.Error(t, err)
		})
	}
}
