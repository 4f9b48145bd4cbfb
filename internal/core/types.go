package core

import (
	"encoding/json"
	"fmt"
)

const (
	BotName    = "DialogBot"
	BotVersion = "0.1.0"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

const (
	PartTypeText     = "text"
	PartTypeImageURL = "image_url"
	PartTypeAudio    = "input_audio"
)

// ContentPart is one typed element of a multimodal message.
type ContentPart struct {
	Type       string      `json:"type"`
	Text       string      `json:"text,omitempty"`
	ImageURL   *ImageURL   `json:"image_url,omitempty"`
	InputAudio *InputAudio `json:"input_audio,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type InputAudio struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

func TextPart(text string) ContentPart {
	return ContentPart{Type: PartTypeText, Text: text}
}

func ImagePart(dataURL string) ContentPart {
	return ContentPart{Type: PartTypeImageURL, ImageURL: &ImageURL{URL: dataURL}}
}

func AudioPart(data, format string) ContentPart {
	return ContentPart{Type: PartTypeAudio, InputAudio: &InputAudio{Data: data, Format: format}}
}

// Content is a tagged union: either plain text or an ordered sequence of
// typed parts. Parts takes precedence when non-nil.
type Content struct {
	text  string
	parts []ContentPart
}

func TextContent(text string) Content {
	return Content{text: text}
}

func PartsContent(parts []ContentPart) Content {
	return Content{parts: parts}
}

func (c Content) IsParts() bool {
	return c.parts != nil
}

func (c Content) Parts() []ContentPart {
	return c.parts
}

// Text returns the plain form: the text itself, or the concatenated text
// parts of a structured content.
func (c Content) Text() string {
	if c.parts == nil {
		return c.text
	}
	var out string
	for _, p := range c.parts {
		if p.Type == PartTypeText {
			out += p.Text
		}
	}
	return out
}

// MarshalJSON encodes plain text as a JSON string and structured content as
// an array of parts, matching the completion API's wire shape.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.parts != nil {
		return json.Marshal(c.parts)
	}
	return json.Marshal(c.text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*c = TextContent(text)
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err == nil {
		*c = PartsContent(parts)
		return nil
	}
	return fmt.Errorf("content is neither text nor a part list")
}

// Message is one dialogue turn.
type Message struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

func NewMessage(role string, content Content) Message {
	return Message{Role: role, Content: content}
}

func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: TextContent(text)}
}
