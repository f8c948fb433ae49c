// Package ocr detects receipt text with the Google Cloud Vision API and reads
// the saved results back for text-only extraction.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/zombor/receipt-batch/internal/media"
)

const (
	textDetection = "TEXT_DETECTION"
	maxResults    = 10000
)

// ErrNoText is returned when Vision finds no text in the image
var ErrNoText = errors.New("no text found")

// Result is the OCR output saved for each receipt
type Result struct {
	FullText   string  `json:"full_text"`
	TextBlocks []Block `json:"text_blocks"`
}

// Block is a single detected word or line
type Block struct {
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"bounding_box"`
}

// BoundingBox is the polygon around a Block
type BoundingBox struct {
	Vertices []Vertex `json:"vertices"`
}

// Vertex is a pixel coordinate. Vision omits zero coordinates.
type Vertex struct {
	X int64 `json:"x,omitempty"`
	Y int64 `json:"y,omitempty"`
}

// Client calls Cloud Vision text detection
type Client struct {
	svc *vision.Service
}

// New creates a Client. An empty endpoint uses the public Vision API.
func New(ctx context.Context, apiKey, endpoint string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("vision api key is required")
	}

	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating vision client: %w", err)
	}
	return &Client{svc: svc}, nil
}

// DetectText runs TEXT_DETECTION on image. The first annotation is the full
// text and the rest become blocks.
func (c *Client) DetectText(ctx context.Context, image []byte) (*Result, error) {
	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []*vision.Feature{{Type: textDetection, MaxResults: maxResults}},
		}},
	}

	resp, err := c.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("annotating image: %w", err)
	}
	if len(resp.Responses) == 0 {
		return nil, ErrNoText
	}

	r := resp.Responses[0]
	if r.Error != nil && r.Error.Code != 0 {
		return nil, fmt.Errorf("annotating image: %s (code %d)", r.Error.Message, r.Error.Code)
	}
	if len(r.TextAnnotations) == 0 {
		return nil, ErrNoText
	}

	result := &Result{
		FullText:   r.TextAnnotations[0].Description,
		TextBlocks: make([]Block, 0, len(r.TextAnnotations)-1),
	}
	for _, a := range r.TextAnnotations[1:] {
		block := Block{Text: a.Description, Confidence: a.Confidence}
		if a.BoundingPoly != nil {
			for _, v := range a.BoundingPoly.Vertices {
				if v != nil {
					block.BoundingBox.Vertices = append(block.BoundingBox.Vertices, Vertex{X: v.X, Y: v.Y})
				}
			}
		}
		result.TextBlocks = append(result.TextBlocks, block)
	}
	return result, nil
}

// Loader returns a function that reads an image file, detects its text and
// returns the full text. Results are saved to saveDir unless it is empty.
func (c *Client) Loader(saveDir string) func(ctx context.Context, path string) (string, error) {
	return func(ctx context.Context, path string) (string, error) {
		data, err := media.LoadFile(path)
		if err != nil {
			return "", err
		}

		result, err := c.DetectText(ctx, data)
		if err != nil {
			return "", err
		}

		if saveDir != "" {
			saved, err := Save(result, saveDir, path)
			if err != nil {
				return "", err
			}
			slog.Debug("Saved OCR result", "path", saved)
		}
		return result.FullText, nil
	}
}

// Save writes r as indented JSON to dir/<image stem>.json and returns the path
func Save(r *Result, dir, imagePath string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating OCR directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding OCR result: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	path := filepath.Join(dir, stem+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing OCR result: %w", err)
	}
	return path, nil
}

// ReadText returns the text of a saved OCR JSON file. It prefers a "text"
// key, then "full_text", and otherwise returns the whole document compacted.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading OCR file: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("decoding OCR file: %w", err)
	}

	for _, key := range []string{"text", "full_text"} {
		if s, ok := doc[key].(string); ok {
			return s, nil
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return "", fmt.Errorf("compacting OCR file: %w", err)
	}
	return buf.String(), nil
}
