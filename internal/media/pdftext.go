package media

import (
	"fmt"
	"os"
	"strings"

	"rsc.io/pdf"
)

// PDFText extracts the text of every page of the PDF at path, one text run per line
func PDFText(path string) (text string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("accessing PDF: %w", err)
	}

	// rsc.io/pdf panics on malformed content streams
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading PDF text: %v", r)
		}
	}()

	file, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("parsing PDF: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= file.NumPage(); i++ {
		for _, t := range file.Page(i).Content().Text {
			b.WriteString(t.S)
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// WrapDocument places text inside <document> tags ahead of the system prompt
func WrapDocument(text, system string) string {
	if text == "" {
		return system
	}
	return fmt.Sprintf("<document>\n%s</document>\n\n%s", text, system)
}
