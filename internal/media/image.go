// Package media turns receipt files into images a vision model accepts.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// PNGMimeType is the MIME type of every prepared image
const PNGMimeType = "image/png"

// ErrUnsupportedFormat is returned when the data cannot be decoded as an image
var ErrUnsupportedFormat = errors.New("unsupported image format")

var extMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".heic": "image/heic",
	".heif": "image/heif",
	".pdf":  "application/pdf",
}

// LoadFile reads path and prepares it for a vision model
func LoadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return Prepare(data, DetectMimeType(path, data))
}

// DetectMimeType guesses the MIME type from the file extension, falling back to content sniffing
func DetectMimeType(name string, data []byte) string {
	if mimeType, ok := extMimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mimeType
	}
	if isHEICFormat(data) {
		return "image/heic"
	}
	return http.DetectContentType(data)
}

// Prepare converts data to PNG and downscales it if it is larger than MaxImageBytes.
// PDFs are rendered from their first page.
func Prepare(data []byte, mimeType string) ([]byte, error) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	pngData, err := convertToPNG(data, mimeType)
	if err != nil {
		return nil, err
	}

	return Shrink(pngData, MaxImageBytes)
}

// PDFToImage renders the first page of a PDF as PNG
func PDFToImage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	// Receipts are single page
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	return encodePNG(img)
}

// imageToPNG converts any supported image format to PNG
func imageToPNG(imageData []byte, mimeType string) ([]byte, error) {
	img, err := decode(imageData, mimeType)
	if err != nil {
		return nil, err
	}
	return encodePNG(img)
}

func decode(imageData []byte, mimeType string) (image.Image, error) {
	// Go's standard image package doesn't support HEIC (common on iPhones)
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%w (supported: JPEG, PNG, GIF, HEIC, HEIF, PDF): %v", ErrUnsupportedFormat, err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks for an ftyp box with a HEIC-related brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// convertToPNG converts PDFs and non-PNG images to PNG. PNG input is returned as is.
func convertToPNG(data []byte, mimeType string) ([]byte, error) {
	switch {
	case mimeType == "application/pdf":
		pngData, err := PDFToImage(data)
		if err != nil {
			return nil, fmt.Errorf("converting PDF to image: %w", err)
		}
		return pngData, nil
	case mimeType != PNGMimeType || isHEICFormat(data):
		pngData, err := imageToPNG(data, mimeType)
		if err != nil {
			return nil, fmt.Errorf("converting image to PNG: %w", err)
		}
		return pngData, nil
	}
	return data, nil
}
