package gateway

import (
	"time"

	"github.com/harithebeast/multimodal-ai/internal/shared"
	"github.com/livekit/protocol/auth"
)

const tokenValidity = 24 * time.Hour

// TokenService mints room-scoped join tokens for the media server.
type TokenService struct {
	apiKey    string
	apiSecret string
	url       string
}

func NewTokenService(apiKey, apiSecret, url string) *TokenService {
	return &TokenService{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		url:       url,
	}
}

func (s *TokenService) URL() string { return s.url }

func (s *TokenService) Configured() bool {
	return s.apiKey != "" && s.apiSecret != ""
}

// GenerateToken grants join, publish, and subscribe on the given room. The
// identity is fixed; the display name carries the caller-chosen participant.
func (s *TokenService) GenerateToken(name, room string) (string, error) {
	at := auth.NewAccessToken(s.apiKey, s.apiSecret)

	canPublish := true
	canSubscribe := true
	grant := &auth.VideoGrant{
		RoomJoin:     true,
		Room:         room,
		CanPublish:   &canPublish,
		CanSubscribe: &canSubscribe,
	}

	at.SetIdentity("participant").
		SetName(name).
		SetValidFor(tokenValidity).
		SetVideoGrant(grant)

	return at.ToJWT()
}

func (s *TokenService) GenerateRoomName() string {
	return "room_" + shared.NewID("")
}
