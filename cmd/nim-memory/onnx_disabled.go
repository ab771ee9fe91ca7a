//go:build !onnx

package main

import (
	"fmt"

	"github.com/becomeliminal/nim-memory/config"
	"github.com/becomeliminal/nim-memory/memory"
)

func newONNXEmbedder(cfg config.EmbedderConfig) (memory.Embedder, error) {
	return nil, fmt.Errorf("onnx embedder not available: rebuild with -tags onnx")
}
