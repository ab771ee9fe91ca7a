//go:build onnx

package main

import (
	"github.com/becomeliminal/nim-memory/config"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/onnx"
)

func newONNXEmbedder(cfg config.EmbedderConfig) (memory.Embedder, error) {
	embedder, err := onnx.New(onnx.Config{
		ModelPath:     cfg.ONNX.ModelPath,
		TokenizerPath: cfg.ONNX.TokenizerPath,
		LibraryPath:   cfg.ONNX.LibraryPath,
		Dimensions:    cfg.Dimensions,
	})
	if err != nil {
		return nil, err
	}
	return embedder, nil
}
