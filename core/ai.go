package core

import "context"

// AIService is any service that can generate feedback text from a prompt.
// Implementations must degrade gracefully: a failing backend yields a canned
// response, never an error the caller has to handle.
type AIService interface {
	// Chat answers a free-form student message.
	Chat(ctx context.Context, message string) string
	// AnalyzeQuestion produces structured feedback on question quality.
	AnalyzeQuestion(ctx context.Context, question string) string
}
