package extractor

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// DecodeText decodes data as UTF-8, replacing invalid sequences with
// U+FFFD. A leading byte order mark is dropped.
func DecodeText(data []byte) (string, error) {
	out, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return string(out), nil
}
