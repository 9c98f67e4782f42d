package llm

import (
	"context"
	"errors"
	"strings"

	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
	oresponses "github.com/openai/openai-go/responses"
	oshared "github.com/openai/openai-go/shared"
)

type openAIClient struct {
	client openai.Client
}

func newOpenAIClient(apiKey, baseURL string) *openAIClient {
	opts := []ooption.RequestOption{ooption.WithAPIKey(strings.TrimSpace(apiKey))}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, ooption.WithBaseURL(strings.TrimSpace(baseURL)))
	}
	return &openAIClient{client: openai.NewClient(opts...)}
}

func (c *openAIClient) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if strings.TrimSpace(req.Model) == "" {
		return nil, errors.New("missing model")
	}
	system, rest := collectSystem(req.Messages)

	params := oresponses.ResponseNewParams{
		Model:           oshared.ResponsesModel(strings.TrimSpace(req.Model)),
		MaxOutputTokens: openai.Int(defaultMaxOutputTokens),
	}
	if req.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(req.MaxTokens)
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if strings.TrimSpace(system) != "" {
		params.Instructions = openai.String(strings.TrimSpace(system))
	}

	var items oresponses.ResponseInputParam
	for _, m := range rest {
		role := oresponses.EasyInputMessageRoleUser
		if strings.EqualFold(strings.TrimSpace(m.Role), "assistant") {
			role = oresponses.EasyInputMessageRoleAssistant
		}
		items = append(items, oresponses.ResponseInputItemParamOfMessage(m.Content, role))
	}
	if len(items) == 0 {
		return nil, errors.New("no user messages")
	}
	params.Input = oresponses.ResponseNewParamsInputUnion{OfInputItemList: items}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return nil, err
	}
	content := resp.OutputText()
	if strings.TrimSpace(content) == "" {
		return &ChatResult{Success: false, Error: "empty completion"}, nil
	}
	return &ChatResult{Success: true, Content: content}, nil
}
