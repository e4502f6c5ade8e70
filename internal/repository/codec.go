package repository

import (
	"bytes"
	"encoding/json"
	"fmt"

	apperrors "github.com/jwalitptl/patient-api/pkg/errors"
)

const nullDocument = "null"

// EncodeDocument turns a caller-supplied JSON value into the text stored in a
// *_json column. An absent value is stored as null.
func EncodeDocument(doc json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(doc)) == 0 {
		return nullDocument, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, doc); err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	return buf.String(), nil
}

// DecodeDocument validates stored text and hands it back as a JSON value.
// field names the column for the error message.
func DecodeDocument(field, text string) (json.RawMessage, error) {
	if !json.Valid([]byte(text)) {
		return nil, apperrors.Decode(field, fmt.Errorf("stored text is not valid JSON: %.32q", text))
	}
	return json.RawMessage(text), nil
}
