package api

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/realaloky/Fast-chat-app/internal/chat"
	"github.com/realaloky/Fast-chat-app/internal/domain"
)

type replyDTO struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	SenderName string `json:"sender_name"`
}

type messageDTO struct {
	Key        string               `json:"key"`
	Status     string               `json:"status"`
	Own        bool                 `json:"own"`
	SenderName string               `json:"sender_name"`
	Message    *domain.Message      `json:"message"`
	SentAgo    string               `json:"sent_ago"`
	MediaSize  string               `json:"media_size,omitempty"`
	ReplyTo    *replyDTO            `json:"reply_to,omitempty"`
	Reactions  []chat.ReactionGroup `json:"reactions"`
}

type conversationDTO struct {
	Target   *domain.User `json:"target"`
	Messages []messageDTO `json:"messages"`
}

type peerDTO struct {
	User        *domain.User    `json:"user"`
	Initials    string          `json:"initials"`
	LastMessage *domain.Message `json:"last_message"`
	LastAgo     string          `json:"last_ago"`
}

func toConversation(st chat.State, now time.Time) conversationDTO {
	out := conversationDTO{Messages: []messageDTO{}}
	if st.Target == "" {
		return out
	}
	if u, ok := st.User(st.Target); ok {
		out.Target = u
	} else {
		out.Target = &domain.User{ID: st.Target}
	}
	for _, vm := range st.View() {
		status := chat.Confirmed.String()
		if vm.Pending {
			status = chat.Pending.String()
		}
		d := messageDTO{
			Key:        vm.Key,
			Status:     status,
			Own:        vm.Own,
			SenderName: vm.SenderName,
			Message:    vm.Message,
			SentAgo:    humanize.RelTime(vm.Message.CreatedAt, now, "ago", "from now"),
			Reactions:  vm.Reactions,
		}
		if d.Reactions == nil {
			d.Reactions = []chat.ReactionGroup{}
		}
		if vm.Message.MediaSize > 0 {
			d.MediaSize = humanize.Bytes(uint64(vm.Message.MediaSize))
		}
		if vm.ReplyTo != nil {
			d.ReplyTo = &replyDTO{ID: vm.ReplyTo.ID, Content: vm.ReplyTo.Content, SenderName: vm.ReplyTo.SenderName}
		}
		out.Messages = append(out.Messages, d)
	}
	return out
}

func toPeers(st chat.State, now time.Time) []peerDTO {
	peers := st.Peers()
	out := make([]peerDTO, 0, len(peers))
	for _, p := range peers {
		u, ok := st.User(p.UserID)
		if !ok {
			u = &domain.User{ID: p.UserID}
		}
		name := st.DisplayName(p.UserID)
		out = append(out, peerDTO{
			User:        u,
			Initials:    domain.Initials(name),
			LastMessage: p.LastMessage,
			LastAgo:     humanize.RelTime(p.LastMessage.CreatedAt, now, "ago", "from now"),
		})
	}
	return out
}
