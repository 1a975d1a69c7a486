package narrate

import (
	"fmt"

	"github.com/morioka22/ncb-tts-r2/pkg/synth"
)

// Attribute renders a message as marked-up synthesis text. A speaker-change
// prefix is added when the author differs from the previous narrated message;
// attachments are announced after the text. Literal content is escaped before
// pause markers are inserted, so chat text containing marker syntax is read
// out verbatim instead of being interpreted.
//
// The returned LastMessage must replace the session's previous one to keep
// ordering for the next call.
func Attribute(last *LastMessage, authorID, displayName, text string, attachmentCount int) (string, LastMessage) {
	out := synth.EscapeText(text)
	if last == nil || last.AuthorID != authorID {
		out = fmt.Sprintf("%s's remark%s%s", synth.EscapeText(displayName), synth.PauseMarker, out)
	}
	if attachmentCount > 0 {
		out = fmt.Sprintf("%s%s%d attachment(s)", out, synth.PauseMarker, attachmentCount)
	}
	next := LastMessage{
		AuthorID:        authorID,
		Content:         text,
		AttachmentCount: attachmentCount,
	}
	return out, next
}
