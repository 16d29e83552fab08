package domain

import "time"

// InboundMessage is a message received from a channel, before it enters the
// pipeline. AudioPath points at a local voice file. RemoveAudio marks the
// file as channel-downloaded scratch data; the pipeline loop removes it once
// the request completes. Channels forwarding user-owned files leave it false.
type InboundMessage struct {
	Channel     string
	ChatID      string
	SenderID    string
	Text        string
	AudioPath   string
	Caption     string
	RemoveAudio bool
	Timestamp   time.Time
}

// OutboundMessage is a reply routed back to the originating channel.
// VoiceNote, when present, is an Ogg/Opus blob delivered as a voice
// attachment in addition to the text content.
type OutboundMessage struct {
	Channel   string
	ChatID    string
	Content   string
	VoiceNote []byte
}
