package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realaloky/Fast-chat-app/internal/domain"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Address
		wantErr bool
	}{
		{name: "code and text", input: "@1234567890 hello", want: Address{Code: "1234567890", Text: "hello"}},
		{name: "code only", input: "@1234567890", want: Address{Code: "1234567890"}},
		{name: "surrounding space", input: "  @1234567890   hello there  ", want: Address{Code: "1234567890", Text: "hello there"}},
		{name: "multiline text", input: "@1234567890 line one\nline two", want: Address{Code: "1234567890", Text: "line one\nline two"}},
		{name: "too short", input: "@12345", wantErr: true},
		{name: "too long", input: "@12345678901", wantErr: true},
		{name: "letters", input: "@12345abcde hi", wantErr: true},
		{name: "no space after code", input: "@1234567890hello", wantErr: true},
		{name: "no sigil", input: "1234567890 hi", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidUserCode(t *testing.T) {
	assert.True(t, ValidUserCode("0000000001"))
	assert.False(t, ValidUserCode("000000001"))
	assert.False(t, ValidUserCode("00000000O1"))
	assert.False(t, ValidUserCode(""))
}

func TestToggleReactionIsAnInvolution(t *testing.T) {
	base := []domain.Reaction{
		{UserID: "u2", Emoji: "👍"},
		{UserID: "u1", Emoji: "🎉"},
	}
	once := ToggleReaction(base, "u1", "👍")
	require.Len(t, once, 3)
	twice := ToggleReaction(once, "u1", "👍")
	assert.Equal(t, base, twice)

	removed := ToggleReaction(base, "u1", "🎉")
	assert.Len(t, removed, 1)
	assert.Len(t, base, 2, "input is not modified")
}

func TestValidateReaction(t *testing.T) {
	assert.NoError(t, ValidateReaction("👍"))
	assert.ErrorIs(t, ValidateReaction(""), ErrInvalidReaction)
	assert.ErrorIs(t, ValidateReaction("ok"), ErrInvalidReaction)
	assert.ErrorIs(t, ValidateReaction("👍👍"), ErrInvalidReaction)
	assert.ErrorIs(t, ValidateReaction("👍 nice"), ErrInvalidReaction)
}

func TestGroupReactions(t *testing.T) {
	names := map[string]string{"u1": "ann", "u2": "bob", "u3": "cat"}
	groups := GroupReactions([]domain.Reaction{
		{UserID: "u2", Emoji: "👍"},
		{UserID: "u3", Emoji: "🎉"},
		{UserID: "u1", Emoji: "👍"},
	}, "u1", func(id string) string { return names[id] })

	require.Len(t, groups, 2)
	assert.Equal(t, ReactionGroup{Emoji: "👍", Count: 2, Users: []string{"ann", "bob"}, Reacted: true}, groups[0])
	assert.Equal(t, ReactionGroup{Emoji: "🎉", Count: 1, Users: []string{"cat"}}, groups[1])
}
