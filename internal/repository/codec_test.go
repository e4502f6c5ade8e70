package repository

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/patient-api/pkg/errors"
)

func TestEncodeDocument(t *testing.T) {
	text, err := EncodeDocument(json.RawMessage(`{ "glucose" : 90, "panel": [1, 2] }`))
	require.NoError(t, err)
	assert.Equal(t, `{"glucose":90,"panel":[1,2]}`, text)

	text, err = EncodeDocument(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", text)

	_, err = EncodeDocument(json.RawMessage(`{"glucose":`))
	assert.Error(t, err)
}

func TestDecodeDocument(t *testing.T) {
	doc, err := DecodeDocument("treatments.labTest", `{"glucose":90}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"glucose":90}`, string(doc))

	_, err = DecodeDocument("treatments.labTest", `{not json`)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrDecode, apperrors.CodeOf(err))
	assert.Contains(t, err.Error(), "treatments.labTest")
}

func TestDocumentRoundTrip(t *testing.T) {
	values := []string{
		`{"glucose":90}`,
		`[{"name":"ESC 2023","url":"https://example.org"},{"name":"AHA"}]`,
		`"free text"`,
		`42.5`,
		`true`,
		`null`,
		`{"nested":{"a":[null,{"b":"ü"}]}}`,
	}
	for _, v := range values {
		text, err := EncodeDocument(json.RawMessage(v))
		require.NoError(t, err, v)
		doc, err := DecodeDocument("doc", text)
		require.NoError(t, err, v)

		var want, got interface{}
		require.NoError(t, json.Unmarshal([]byte(v), &want))
		require.NoError(t, json.Unmarshal(doc, &got))
		assert.Equal(t, want, got, v)
	}
}
