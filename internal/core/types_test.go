package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent_MarshalText(t *testing.T) {
	data, err := json.Marshal(NewMessage(RoleUser, TextContent("hello")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":"hello"}`, string(data))
}

func TestContent_MarshalParts(t *testing.T) {
	content := PartsContent([]ContentPart{
		TextPart("what is this?"),
		ImagePart("data:image/jpeg;base64,AAAA"),
	})

	data, err := json.Marshal(content)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"type":"text","text":"what is this?"},
		{"type":"image_url","image_url":{"url":"data:image/jpeg;base64,AAAA"}}
	]`, string(data))
}

func TestContent_UnmarshalText(t *testing.T) {
	var c Content
	require.NoError(t, json.Unmarshal([]byte(`"plain answer"`), &c))
	assert.False(t, c.IsParts())
	assert.Equal(t, "plain answer", c.Text())
}

func TestContent_UnmarshalParts(t *testing.T) {
	raw := `[{"type":"text","text":"listen"},{"type":"input_audio","input_audio":{"data":"QUJD","format":"ogg"}}]`

	var c Content
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	require.True(t, c.IsParts())
	parts := c.Parts()
	require.Len(t, parts, 2)
	assert.Equal(t, PartTypeAudio, parts[1].Type)
	require.NotNil(t, parts[1].InputAudio)
	assert.Equal(t, "ogg", parts[1].InputAudio.Format)
	assert.Equal(t, "listen", c.Text())
}

func TestContent_UnmarshalRejectsOtherShapes(t *testing.T) {
	var c Content
	assert.Error(t, json.Unmarshal([]byte(`{"nested":"object"}`), &c))
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole(RoleUser))
	assert.True(t, ValidRole(RoleAssistant))
	assert.True(t, ValidRole(RoleSystem))
	assert.False(t, ValidRole("tool"))
}
