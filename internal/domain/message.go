package domain

import "time"

// IncomingMessage is a single chat message delivered by the transport.
type IncomingMessage struct {
	ChatID    int64
	MessageID int
	SenderID  int64
	Username  string
	Text      string
	IsCommand bool
	Command   string // command name without the leading slash, e.g. "start"
	Timestamp time.Time
}

// TranslationResult is the output of one translation call.
type TranslationResult struct {
	Text       string
	SourceLang string // as detected by the translation service, may be empty
}

// InferenceRequest is the JSON payload sent to the image model.
type InferenceRequest struct {
	Inputs string `json:"inputs"`
}

// InferenceResponse holds the raw image produced by the model.
type InferenceResponse struct {
	Image       []byte
	ContentType string
}
