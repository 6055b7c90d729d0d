package domain

import "context"

// Translator converts text into the target language (ISO-639-1 code).
// Implementations return an error wrapping ErrTranslation on failure.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (TranslationResult, error)
}

// ImageGenerator turns a text prompt into an image.
// Implementations return an error wrapping ErrInference on failure.
type ImageGenerator interface {
	Generate(ctx context.Context, req InferenceRequest) (InferenceResponse, error)
}
