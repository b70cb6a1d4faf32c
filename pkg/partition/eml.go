package partition

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jhillyerd/enmime"
	"golang.org/x/net/html"
)

// partitionEML emits the subject as a Title followed by the message body.
// The plain text body wins; an HTML-only body is partitioned as HTML.
func partitionEML(data []byte) ([]Element, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse eml: %w", err)
	}

	var out []Element
	if subject := strings.TrimSpace(env.GetHeader("Subject")); subject != "" {
		out = append(out, Element{Type: Title, Text: subject})
	}
	if strings.TrimSpace(env.Text) == "" && env.HTML != "" {
		doc, err := html.Parse(strings.NewReader(env.HTML))
		if err != nil {
			return nil, fmt.Errorf("parse eml html body: %w", err)
		}
		return append(out, htmlElements(doc)...), nil
	}
	return append(out, paragraphs(env.Text, 0)...), nil
}
