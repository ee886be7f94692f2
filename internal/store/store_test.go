package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConversationStatus(t *testing.T) {
	for _, s := range []string{"active", "escalated", "resolved", "archived"} {
		got, err := ParseConversationStatus(s)
		require.NoError(t, err)
		assert.Equal(t, ConversationStatus(s), got)
	}

	_, err := ParseConversationStatus("ACTIVE")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "conversation status", vErr.Field)
	assert.Equal(t, `invalid conversation status "ACTIVE"`, err.Error())
}

func TestParseSenderRole(t *testing.T) {
	for _, s := range []string{"user", "bot", "agent"} {
		got, err := ParseSenderRole(s)
		require.NoError(t, err)
		assert.Equal(t, SenderRole(s), got)
	}

	_, err := ParseSenderRole("")
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestParseLeadScore(t *testing.T) {
	tests := []struct {
		in      string
		want    LeadScore
		wantErr bool
	}{
		{in: "hot", want: LeadHot},
		{in: "warm", want: LeadWarm},
		{in: "cold", want: LeadCold},
		{in: "lukewarm", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLeadScore(tt.in)
			if tt.wantErr {
				var vErr *ValidationError
				assert.ErrorAs(t, err, &vErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
