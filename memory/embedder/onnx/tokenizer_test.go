//go:build onnx

package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTokenizer(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokenizer.json")
	data := `{"model":{"vocab":{"[UNK]":100,"[CLS]":101,"[SEP]":102,"send":2000,"money":2001,"play":2002,"##ing":2003}}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestTokenizer_WordPiece(t *testing.T) {
	tok, err := loadTokenizer(writeTokenizer(t))
	require.NoError(t, err)

	assert.Equal(t, []int64{2000, 2001}, tok.Tokenize("Send money!"))
	assert.Equal(t, []int64{2002, 2003}, tok.Tokenize("playing"))
	assert.Equal(t, []int64{unkTokenID}, tok.Tokenize("x"))
}

func TestEncode_TruncatesAndFrames(t *testing.T) {
	tok, err := loadTokenizer(writeTokenizer(t))
	require.NoError(t, err)
	e := &ONNXEmbedder{tokenizer: tok, dimensions: 4, maxLen: 4}

	ids, mask := e.encode("send money send money")
	assert.Equal(t, []int64{clsTokenID, 2000, 2001, sepTokenID}, ids)
	assert.Equal(t, []int64{1, 1, 1, 1}, mask)
}

func TestPool_MeanOverAttendedTokens(t *testing.T) {
	e := &ONNXEmbedder{dimensions: 2, maxLen: 3}
	data := []float32{
		1, 0,
		3, 0,
		100, 100, // padding, masked out
	}
	got, err := e.pool([]int64{1, 3, 2}, data, []int64{1, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 0}, got)
}
