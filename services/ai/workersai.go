package aisvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"qugrow/core"
)

const analysisSystemPrompt = `당신은 교육 전문가입니다. 학생의 질문을 분석하여 다음 형식으로 피드백을 제공해주세요:

강점: 이 질문의 좋은 점 1-2개
약점: 개선이 필요한 부분 1-2개
보완점: 더 깊이 있는 질문으로 만들기 위한 구체적 제안 1-2개

간결하고 학생이 이해하기 쉽게 작성해주세요.`

// fallbackAnalysis is returned whenever the model backend is unreachable or
// misbehaves. Students always get feedback.
const fallbackAnalysis = `🌟 강점
• 명확하고 이해하기 쉬운 질문입니다
• 호기심과 탐구 의욕이 잘 드러나 있습니다

⚠️ 약점
• 좀 더 구체적인 상황이나 배경을 포함하면 좋겠습니다
• 질문의 범위를 더 명확히 설정하면 답변하기 쉬워집니다

💡 오늘의 보완점
• "왜 그럴까요?" → "어떤 상황에서 왜 그럴까요?"로 구체화해보세요
• 본인의 경험이나 관찰한 사례를 질문에 포함해보세요
• 여러 관점에서 접근할 수 있는 하위 질문들을 만들어보세요`

type (
	chatMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	runRequest struct {
		Messages []chatMessage `json:"messages"`
	}

	runResponse struct {
		Result struct {
			Response string `json:"response"`
		} `json:"result"`
		Success bool `json:"success"`
	}
)

// workersAIService proxies the Cloudflare Workers AI REST API.
type workersAIService struct {
	conf   *core.Config
	client *http.Client
	logger core.Logger
}

var _ core.AIService = (*workersAIService)(nil)

func NewWorkersAIService(conf *core.Config, logger core.Logger) *workersAIService {
	return &workersAIService{
		conf:   conf,
		client: &http.Client{Timeout: conf.AI.Timeout},
		logger: logger,
	}
}

func (svc workersAIService) Chat(ctx context.Context, message string) string {
	out, err := svc.run(ctx, []chatMessage{
		{Role: "user", Content: message},
	})
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("ai: chat failed: %v", err))
		return fallbackAnalysis
	}
	return out
}

func (svc workersAIService) AnalyzeQuestion(ctx context.Context, question string) string {
	out, err := svc.run(ctx, []chatMessage{
		{Role: "system", Content: analysisSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("다음 질문을 분석해주세요: %q", question)},
	})
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("ai: question analysis failed: %v", err))
		return fallbackAnalysis
	}
	return out
}

func (svc workersAIService) run(ctx context.Context, messages []chatMessage) (string, error) {
	payload, err := json.Marshal(runRequest{Messages: messages})
	if err != nil {
		return "", errors.Wrap(err, "encoding request")
	}

	endpoint := fmt.Sprintf(
		"https://api.cloudflare.com/client/v4/accounts/%s/ai/run/%s",
		svc.conf.AI.AccountID, svc.conf.AI.Model,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "creating request")
	}
	req.Header.Set("Authorization", "Bearer "+svc.conf.AI.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := svc.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "calling model")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("calling model: unexpected status %d", resp.StatusCode)
	}

	var body runResponse
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.Wrap(err, "decoding response")
	}
	if !body.Success || body.Result.Response == "" {
		return "", errors.New("model returned no response")
	}
	return body.Result.Response, nil
}
