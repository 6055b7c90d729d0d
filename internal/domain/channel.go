package domain

import "context"

// Messenger is the outbound side of the chat transport.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, image []byte) error
}

// MessageHandler consumes inbound messages delivered by a transport.
type MessageHandler interface {
	Handle(ctx context.Context, msg IncomingMessage)
}
