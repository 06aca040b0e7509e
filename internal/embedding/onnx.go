//go:build cgo
// +build cgo

// Package embedding provides ONNX-based embedding (requires CGO and onnxruntime library).
package embedding

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/mihari/pkg/utils"
)

const (
	frameChannels = 3
	frameSize     = 224
	framePixels   = frameChannels * frameSize * frameSize
)

// ONNXEmbedder runs a CLIP-style vision tower with ONNX Runtime to embed
// videos. It requires CGO and the onnxruntime shared library.
//
// Frame decoding is an external concern: the embedder reads pre-extracted
// frame tensors from a "<video>.frames" sidecar file (uint32 frame count,
// then per frame 3x224x224 float32 CHW, little-endian). Frame embeddings
// are mean-pooled and L2-normalized into one video embedding.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	dimensions int
	cache      *EmbeddingCache
	// Pre-allocated tensors for Run(); we update input data and read output.
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	mu           sync.Mutex
}

// NewONNXEmbedder creates an ONNX embedder. InitializeEnvironment is called if not already done.
func NewONNXEmbedder(modelPath string, dimensions, cacheSize int) (*ONNXEmbedder, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	inputData := make([]float32, framePixels)
	inputTensor, err := ort.NewTensor(ort.NewShape(1, frameChannels, frameSize, frameSize), inputData)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputData := make([]float32, dimensions)
	outputTensor, err := ort.NewTensor(ort.NewShape(1, int64(dimensions)), outputData)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXEmbedder{
		session:      session,
		dimensions:   dimensions,
		cache:        NewEmbeddingCache(cacheSize),
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// EmbedVideo returns the embedding for the video at videoPath, using cache
// when available. The context is checked between frames; inference on a
// single frame is not interruptible.
func (e *ONNXEmbedder) EmbedVideo(ctx context.Context, videoPath string) ([]float32, error) {
	if cached, ok := e.cache.Get(videoPath); ok {
		return cached, nil
	}

	frames, err := readFrameTensors(videoPath + ".frames")
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pooled := make([]float64, e.dimensions)
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		copy(e.inputTensor.GetData(), frame)
		if err := e.session.Run(); err != nil {
			return nil, fmt.Errorf("inference failed: %w", err)
		}
		out := e.outputTensor.GetData()
		for i := 0; i < e.dimensions; i++ {
			pooled[i] += float64(out[i])
		}
	}

	embedding := make([]float32, e.dimensions)
	inv := 1.0 / float64(len(frames))
	for i := range embedding {
		embedding[i] = float32(pooled[i] * inv)
	}
	utils.NormalizeL2(embedding)
	e.cache.Set(videoPath, embedding)
	return embedding, nil
}

// readFrameTensors reads the pre-extracted frame tensors for a video.
func readFrameTensors(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame sidecar: %w", err)
	}
	defer f.Close()
	var count uint32
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read frame count: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("frame sidecar %s has no frames", path)
	}
	frames := make([][]float32, 0, count)
	buf := make([]byte, framePixels*4)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, fmt.Errorf("read frame %d: %w", i, err)
		}
		frame := make([]float32, framePixels)
		for j := range frame {
			frame[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4 : (j+1)*4]))
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the session and tensors.
func (e *ONNXEmbedder) Close() error {
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.inputTensor != nil {
		_ = e.inputTensor.Destroy()
		e.inputTensor = nil
	}
	if e.outputTensor != nil {
		_ = e.outputTensor.Destroy()
		e.outputTensor = nil
	}
	return err
}
