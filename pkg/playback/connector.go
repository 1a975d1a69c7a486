// Package playback is the boundary to the external voice-transport
// connector that joins channels and plays artifacts.
package playback

import "context"

// Connector exposes the voice-transport primitives the pipeline needs.
// Implementations must tolerate a guild whose session or channel is gone by
// the time a call lands; such calls fail softly and are only logged upstream.
type Connector interface {
	Join(ctx context.Context, guildID, voiceChannelID string) error
	Leave(ctx context.Context, guildID string) error
	Enqueue(ctx context.Context, guildID, filePath string) error
}
