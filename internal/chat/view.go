package chat

import "github.com/realaloky/Fast-chat-app/internal/domain"

type ReplyPreview struct {
	ID         string
	Content    string
	SenderName string
}

// ViewMessage is an entry of the active conversation decorated for display.
type ViewMessage struct {
	Key        string
	Pending    bool
	Own        bool
	SenderName string
	Message    *domain.Message
	ReplyTo    *ReplyPreview
	Reactions  []ReactionGroup
}

// View renders the active conversation.
func (s State) View() []ViewMessage {
	entries := s.ActiveView()
	out := make([]ViewMessage, 0, len(entries))
	for _, e := range entries {
		m := e.Message
		vm := ViewMessage{
			Key:        e.Key(),
			Pending:    e.Status == Pending,
			Own:        s.Self != nil && m.SenderID == s.Self.ID,
			SenderName: s.DisplayName(m.SenderID),
			Message:    m,
			Reactions:  GroupReactions(m.Reactions, s.selfID(), s.DisplayName),
		}
		if m.ReplyToID != "" {
			if ref, ok := s.Lookup(m.ReplyToID); ok {
				vm.ReplyTo = &ReplyPreview{
					ID:         ref.Message.ID,
					Content:    ref.Message.Content,
					SenderName: s.DisplayName(ref.Message.SenderID),
				}
			}
		}
		out = append(out, vm)
	}
	return out
}

func (s State) selfID() string {
	if s.Self == nil {
		return ""
	}
	return s.Self.ID
}
