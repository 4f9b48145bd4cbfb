package telegram

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/sandevgo/dialogbot/internal/core"
)

const (
	defaultPhotoPrompt = "Describe what is on this image."
	defaultAudioPrompt = "Listen to this audio and respond to it."
)

// photoContent turns an incoming photo into structured message content: a
// text part from the caption plus the image as a base64 data URL.
func (b *Bot) photoContent(photo *tele.Photo, caption string) (core.Content, error) {
	data, err := b.downloadFile(&photo.File)
	if err != nil {
		return core.Content{}, fmt.Errorf("failed to download photo: %w", err)
	}

	prompt := strings.TrimSpace(caption)
	if prompt == "" {
		prompt = defaultPhotoPrompt
	}
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
	return core.PartsContent([]core.ContentPart{
		core.TextPart(prompt),
		core.ImagePart(dataURL),
	}), nil
}

// audioContent turns an audio or voice attachment into structured content
// carrying the base64 payload and its format.
func (b *Bot) audioContent(file *tele.File, mime, caption string) (core.Content, error) {
	data, err := b.downloadFile(file)
	if err != nil {
		return core.Content{}, fmt.Errorf("failed to download audio: %w", err)
	}

	prompt := strings.TrimSpace(caption)
	if prompt == "" {
		prompt = defaultAudioPrompt
	}
	return core.PartsContent([]core.ContentPart{
		core.TextPart(prompt),
		core.AudioPart(base64.StdEncoding.EncodeToString(data), audioFormat(mime)),
	}), nil
}

func (b *Bot) downloadFile(file *tele.File) ([]byte, error) {
	rc, err := b.bot.File(file)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// audioFormat maps a MIME type onto the completion API's audio format name.
func audioFormat(mime string) string {
	switch mime {
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/ogg", "audio/opus":
		return "ogg"
	case "audio/wav", "audio/x-wav":
		return "wav"
	}
	if _, subtype, ok := strings.Cut(mime, "/"); ok && subtype != "" {
		return subtype
	}
	return "mp3"
}
