package ai

import (
	"context"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"go.uber.org/zap"
)

type Settings struct {
	Endpoint   string
	APIKey     string
	Deployment string
	// extra client options, mainly for tests
	Options []option.RequestOption
}

// Reporter turns report data into written insights through Azure OpenAI. Without
// credentials it still answers, with the raw data only.
type Reporter struct {
	client     *openai.Client
	deployment string
	logger     *zap.Logger
}

func NewReporter(s Settings, logger *zap.Logger) *Reporter {
	r := &Reporter{deployment: s.Deployment, logger: logger}
	if r.deployment == "" {
		r.deployment = "gpt-4o-mini"
	}

	if s.Endpoint == "" || s.APIKey == "" {
		logger.Info("AI service disabled - Azure OpenAI credentials not provided",
			zap.Strings("required", []string{"AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_API_KEY"}))
		return r
	}

	opts := append([]option.RequestOption{
		option.WithBaseURL(s.Endpoint),
		option.WithAPIKey(s.APIKey),
	}, s.Options...)
	client := openai.NewClient(opts...)
	r.client = &client

	logger.Info("AI service initialized with Azure OpenAI", zap.String("deployment", r.deployment))
	return r
}

func (r *Reporter) Enabled() bool {
	return r != nil && r.client != nil
}

func (r *Reporter) generateCompletion(ctx context.Context, systemMessage, userMessage string) (string, error) {
	if !r.Enabled() {
		return "", &AIError{Message: "AI service is not enabled"}
	}

	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(r.deployment),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(systemMessage),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(userMessage),
					},
				},
			},
		},
		MaxTokens:   openai.Int(1500),
		Temperature: openai.Float(0.7),
	})
	if err != nil {
		r.logger.Warn("AI API error", zap.Error(err))
		return "", &AIError{Message: "Failed to generate AI response", Cause: err}
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &AIError{Message: "AI returned empty response"}
	}
	return resp.Choices[0].Message.Content, nil
}

// AIError represents an AI service error
type AIError struct {
	Message string
	Cause   error
}

func (e *AIError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AIError) Unwrap() error { return e.Cause }
