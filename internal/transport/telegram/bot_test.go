package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"github.com/sandevgo/dialogbot/internal/core"
)

// fakeContext records sent messages; only the methods the stop-word path
// touches are implemented.
type fakeContext struct {
	tele.Context
	sent []interface{}
}

func (f *fakeContext) Send(what interface{}, _ ...interface{}) error {
	f.sent = append(f.sent, what)
	return nil
}

func TestRespond_StopWordTextShortCircuits(t *testing.T) {
	bot := &Bot{}
	c := &fakeContext{}

	err := bot.respond(c, core.TextContent("you stupid bot"), "you stupid bot")
	require.NoError(t, err)

	require.Len(t, c.sent, 1)
	assert.Equal(t, profanityReply, c.sent[0])
}

func TestRespond_StopWordCaptionShortCircuits(t *testing.T) {
	bot := &Bot{}
	c := &fakeContext{}

	// Media arrives with the abusive text in the caption; the gate must
	// fire on it before the content reaches the model.
	content := core.PartsContent([]core.ContentPart{
		core.TextPart("shut up and describe this"),
		core.ImagePart("data:image/jpeg;base64,AAAA"),
	})
	err := bot.respond(c, content, "shut up and describe this")
	require.NoError(t, err)

	require.Len(t, c.sent, 1)
	assert.Equal(t, profanityReply, c.sent[0])
}
