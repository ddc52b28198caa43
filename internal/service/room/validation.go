package room

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sharetube/roomsync/internal/domain"
)

const (
	MaxChatLength        = 500
	maxNonceLength       = 64
	maxParticipantLength = 64
)

func validateIdentity(participantId, displayName string) error {
	if err := (validation.Errors{
		"participant_id": validation.Validate(participantId, validation.Required, validation.Length(1, maxParticipantLength)),
		"display_name":   validation.Validate(displayName, validation.Required, validation.RuneLength(1, maxParticipantLength)),
	}).Filter(); err != nil {
		return domain.Reject(domain.ReasonInvalidPayload, "%s", err.Error())
	}

	return nil
}

// validateCommand checks the shape of a proposal. State dependent checks are
// left to the playback state machine.
func validateCommand(t domain.EventType, p *domain.Payload) error {
	if !t.IsProposable() {
		return domain.Reject(domain.ReasonInvalidPayload, "%q cannot be proposed", t)
	}

	var err error
	switch t {
	case domain.EventLoad:
		err = validation.ValidateStruct(p,
			validation.Field(&p.VideoRef, validation.NotNil, validation.Length(0, domain.MaxVideoRefLength)),
		)
	case domain.EventSeek:
		err = validation.ValidateStruct(p,
			validation.Field(&p.Position, validation.NotNil, validation.Min(0.0)),
		)
	case domain.EventChat:
		err = validation.ValidateStruct(p,
			validation.Field(&p.Text, validation.Required, validation.RuneLength(1, MaxChatLength)),
			validation.Field(&p.Nonce, validation.Length(0, maxNonceLength)),
		)
	}

	if err != nil {
		return domain.Reject(domain.ReasonInvalidPayload, "%s", err.Error())
	}

	return nil
}

// commandPayload keeps only the fields the event type carries.
func commandPayload(t domain.EventType, p domain.Payload) domain.Payload {
	switch t {
	case domain.EventLoad:
		return domain.Payload{VideoRef: p.VideoRef}
	case domain.EventSeek:
		return domain.Payload{Position: p.Position}
	case domain.EventChat:
		return domain.Payload{Text: p.Text, Nonce: p.Nonce}
	default:
		return domain.Payload{}
	}
}
