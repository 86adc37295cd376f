package aisvc

import (
	"context"

	"qugrow/core"
)

// dummyService always answers with the canned analysis. Used in tests and
// when no model credentials are configured.
type dummyService struct{}

var _ core.AIService = (*dummyService)(nil)

func NewDummyService() core.AIService { return &dummyService{} }

func (dummyService) Chat(ctx context.Context, message string) string {
	return fallbackAnalysis
}

func (dummyService) AnalyzeQuestion(ctx context.Context, question string) string {
	return fallbackAnalysis
}
