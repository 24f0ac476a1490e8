package core

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"sort"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const DefaultInputSize = 224

// MaxImagePixels bounds the declared size of an image before it is decoded.
// Compressed uploads can declare far more pixels than their byte size implies.
const MaxImagePixels = 50_000_000

var ErrUndecodableImage = errors.New("image could not be decoded")

// ImageToTensor decodes the image, resizes it to size x size and returns the
// pixels in NHWC order scaled to [0,1].
func ImageToTensor(data []byte, size int) ([]float32, error) {
	if size <= 0 {
		size = DefaultInputSize
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodableImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUndecodableImage, cfg.Width, cfg.Height, MaxImagePixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodableImage, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := make([]float32, 0, size*size*3)
	for y := 0; y < size; y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+size*4]
		for x := 0; x < size; x++ {
			px := row[x*4 : x*4+4]
			out = append(out, float32(px[0])/255, float32(px[1])/255, float32(px[2])/255)
		}
	}
	return out, nil
}

func isDistribution(scores []float32) bool {
	var sum float64
	for _, s := range scores {
		if s < 0 || s > 1 {
			return false
		}
		sum += float64(s)
	}
	return math.Abs(sum-1) < 1e-3
}

func softmax(scores []float32) []float32 {
	if len(scores) == 0 {
		return nil
	}
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}

	out := make([]float32, len(scores))
	var sum float64
	for i, s := range scores {
		e := math.Exp(float64(s - maxScore))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

// rankScores pairs labels with scores and sorts them by descending
// confidence. Raw logits are normalised with softmax first. Ties keep label
// order.
func rankScores(labels []string, scores []float32) ([]Category, error) {
	if len(labels) != len(scores) {
		return nil, fmt.Errorf("model produced %d scores for %d labels", len(scores), len(labels))
	}
	if !isDistribution(scores) {
		scores = softmax(scores)
	}

	ranked := make([]Category, len(labels))
	for i, label := range labels {
		ranked[i] = Category{Label: label, Confidence: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})
	return ranked, nil
}
