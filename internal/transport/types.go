package transport

import "time"

// Track publication sources as announced over signaling.
const (
	SourceScreenShare = "screen_share"
	SourceCamera      = "camera"
	SourceMicrophone  = "microphone"
)

type EventType string

const (
	EventParticipantJoined EventType = "participant_joined"
	EventParticipantLeft   EventType = "participant_left"
	EventTrackSubscribed   EventType = "track_subscribed"
	EventTrackUnsubscribed EventType = "track_unsubscribed"
	EventSpeechStart       EventType = "speech_start"
	EventSpeechEnd         EventType = "speech_end"
	EventUserStateChanged  EventType = "user_state_changed"
	EventDisconnected      EventType = "disconnected"
)

// Event is a connection lifecycle notification surfaced to the session.
type Event struct {
	Type        EventType
	Participant string
	TrackSource string
	State       string
	Timestamp   time.Time
}

type ServerEventType string

const (
	ServerEventGreeting   ServerEventType = "greeting"
	ServerEventTranscript ServerEventType = "transcript"
	ServerEventResponse   ServerEventType = "response"
	ServerEventStatus     ServerEventType = "agent_status"
	ServerEventError      ServerEventType = "error"
)

type ServerEvent struct {
	Type    ServerEventType `json:"type"`
	Payload any             `json:"payload,omitempty"`
}

type TranscriptPayload struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

type ResponsePayload struct {
	Text  string `json:"text"`
	Delta bool   `json:"delta"`
}

type AudioChunk struct {
	Data       []byte
	SampleRate int
}
