package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type identity struct {
	ParticipantId string `json:"participant_id" validate:"required,max=64,printascii"`
	DisplayName   string `json:"display_name" validate:"required,min=1,max=64"`
}

func TestValidate(t *testing.T) {
	v := NewValidator()

	errs, ok := v.Validate(identity{ParticipantId: "p1", DisplayName: "Alice"})
	assert.True(t, ok)
	assert.Empty(t, errs)

	errs, ok = v.Validate(identity{})
	require.False(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, "participant_id", errs[0].Field)
	assert.Equal(t, "REQUIRED", errs[0].Code)
	assert.Equal(t, "participant_id is required", errs[0].Message)
}
