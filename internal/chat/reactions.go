package chat

import (
	"sort"

	"github.com/forPelevin/gomoji"

	"github.com/realaloky/Fast-chat-app/internal/domain"
)

// ValidateReaction checks that reaction is exactly one emoji.
func ValidateReaction(reaction string) error {
	emojis := gomoji.CollectAll(reaction)
	if len(emojis) != 1 || emojis[0].Character != reaction {
		return ErrInvalidReaction
	}
	return nil
}

// ToggleReaction adds (userID, emoji) to reactions, or removes it when already present.
// Applying the same toggle twice yields the original set. The input is not modified.
func ToggleReaction(reactions []domain.Reaction, userID, emoji string) []domain.Reaction {
	out := make([]domain.Reaction, 0, len(reactions)+1)
	removed := false
	for _, r := range reactions {
		if r.UserID == userID && r.Emoji == emoji {
			removed = true
			continue
		}
		out = append(out, r)
	}
	if !removed {
		out = append(out, domain.Reaction{UserID: userID, Emoji: emoji})
	}
	return out
}

// ReactionGroup is the display summary of one emoji on a message.
type ReactionGroup struct {
	Emoji   string   `json:"emoji"`
	Count   int      `json:"count"`
	Users   []string `json:"users"`
	Reacted bool     `json:"reacted"`
}

// GroupReactions summarises reactions per emoji in first-seen order. names resolves user
// ids to display names.
func GroupReactions(reactions []domain.Reaction, self string, names func(string) string) []ReactionGroup {
	order := map[string]int{}
	var groups []ReactionGroup
	for _, r := range reactions {
		i, ok := order[r.Emoji]
		if !ok {
			i = len(groups)
			order[r.Emoji] = i
			groups = append(groups, ReactionGroup{Emoji: r.Emoji})
		}
		g := &groups[i]
		g.Count++
		name := r.Username
		if name == "" && names != nil {
			name = names(r.UserID)
		}
		g.Users = append(g.Users, name)
		if r.UserID == self {
			g.Reacted = true
		}
	}
	for i := range groups {
		sort.Strings(groups[i].Users)
	}
	return groups
}
