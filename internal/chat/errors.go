package chat

import "errors"

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrNoTarget        = errors.New("no active conversation target")
	ErrInvalidAddress  = errors.New("address must be @ followed by a 10 digit user code")
	ErrUserNotFound    = errors.New("user not found")
	ErrSelfTarget      = errors.New("cannot start a conversation with yourself")
	ErrMessageNotFound = errors.New("message not found")
	ErrPendingMessage  = errors.New("message is not confirmed yet")
	ErrNotOwner        = errors.New("only the sender can do this")
	ErrInvalidReaction = errors.New("reaction must be a single emoji")
	ErrNoObjectStorage = errors.New("object storage is not configured")
	ErrEmptyAttachment = errors.New("attachment is empty")
)
