package video

import (
	"context"
	"fmt"
	"time"

	stream_chat "github.com/GetStream/stream-chat-go/v5"
	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/cmd/utils"
	"gorm.io/gorm"
)

const (
	LawyerUID = 1
	ClientUID = 2

	DefaultTTL = 24 * time.Hour
)

// Signer produces the provider credential for one call identity.
type Signer interface {
	Sign(identity string, expiresAt time.Time) (string, error)
}

// StreamSigner signs user tokens with the GetStream API secret.
type StreamSigner struct {
	client *stream_chat.Client
}

func NewStreamSigner(apiKey, apiSecret string) (*StreamSigner, error) {
	client, err := stream_chat.NewClient(apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("error initializing Stream client: %w", err)
	}
	return &StreamSigner{client: client}, nil
}

func (s *StreamSigner) Sign(identity string, expiresAt time.Time) (string, error) {
	return s.client.CreateToken(identity, expiresAt)
}

// Credential is what a participant needs to join the appointment's call.
type Credential struct {
	Token     string    `json:"token"`
	Channel   string    `json:"channel"`
	UID       int       `json:"uid"`
	Role      string    `json:"role"`
	APIKey    string    `json:"apiKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func ChannelName(appointmentID uint) string {
	return fmt.Sprintf("appointment-%d", appointmentID)
}

type Issuer struct {
	signer Signer
	apiKey string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(signer Signer, apiKey string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{signer: signer, apiKey: apiKey, ttl: ttl, now: time.Now}
}

// Issue hands a participant of a paid appointment a credential for the
// appointment's channel. Both parties derive the same channel and a fixed
// uid per role.
func (i *Issuer) Issue(ctx context.Context, db *gorm.DB, appointmentID uint, actor utils.Actor) (*Credential, error) {
	var appt models.Appointment
	if err := db.WithContext(ctx).First(&appt, appointmentID).Error; err != nil {
		return nil, utils.StoreError(err, "appointment")
	}

	var uid int
	var role string
	switch actor.ID {
	case appt.LawyerID:
		uid, role = LawyerUID, "lawyer"
	case appt.ClientID:
		uid, role = ClientUID, "client"
	default:
		return nil, utils.Forbidden("you are not part of this appointment")
	}
	if appt.Status != models.AppointmentCompleted {
		return nil, utils.InvalidState("video calls open once the appointment is paid")
	}
	if i.signer == nil {
		return nil, utils.Internal(nil, "video provider is not configured")
	}

	channel := ChannelName(appt.ID)
	expiresAt := i.now().Add(i.ttl).UTC()
	token, err := i.signer.Sign(fmt.Sprintf("%s-%d", channel, uid), expiresAt)
	if err != nil {
		return nil, utils.Internal(err, "error generating video token")
	}

	return &Credential{
		Token:     token,
		Channel:   channel,
		UID:       uid,
		Role:      role,
		APIKey:    i.apiKey,
		ExpiresAt: expiresAt,
	}, nil
}
