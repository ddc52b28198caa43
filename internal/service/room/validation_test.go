package room

import (
	"strings"
	"testing"

	"github.com/sharetube/roomsync/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name    string
		t       domain.EventType
		payload domain.Payload
		valid   bool
	}{
		{"load", domain.EventLoad, domain.Payload{VideoRef: domain.StringPtr("v")}, true},
		{"unload", domain.EventLoad, domain.Payload{VideoRef: domain.StringPtr("")}, true},
		{"load without ref", domain.EventLoad, domain.Payload{}, false},
		{"load with long ref", domain.EventLoad, domain.Payload{VideoRef: domain.StringPtr(strings.Repeat("v", domain.MaxVideoRefLength+1))}, false},
		{"seek", domain.EventSeek, domain.Payload{Position: domain.Float64Ptr(12.5)}, true},
		{"seek without position", domain.EventSeek, domain.Payload{}, false},
		{"seek to negative position", domain.EventSeek, domain.Payload{Position: domain.Float64Ptr(-1)}, false},
		{"play", domain.EventPlay, domain.Payload{}, true},
		{"chat", domain.EventChat, domain.Payload{Text: "hi", Nonce: "n"}, true},
		{"empty chat", domain.EventChat, domain.Payload{}, false},
		{"long chat", domain.EventChat, domain.Payload{Text: strings.Repeat("ж", MaxChatLength+1)}, false},
		{"chat at limit", domain.EventChat, domain.Payload{Text: strings.Repeat("ж", MaxChatLength)}, true},
		{"join", domain.EventJoin, domain.Payload{ParticipantId: "p"}, false},
		{"host change", domain.EventHostChange, domain.Payload{ParticipantId: "p"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := commandPayload(tt.t, tt.payload)
			err := validateCommand(tt.t, &p)
			if tt.valid {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, domain.ErrInvalidPayload)
		})
	}
}

func TestCommandPayloadDropsServerFields(t *testing.T) {
	p := commandPayload(domain.EventChat, domain.Payload{
		Text:          "hi",
		Nonce:         "n",
		MessageId:     "forged",
		ParticipantId: "someone-else",
	})

	assert.Equal(t, domain.Payload{Text: "hi", Nonce: "n"}, p)
}
