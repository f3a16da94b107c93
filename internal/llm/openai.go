package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1/"
	openAIDefaultModel   = openai.ChatModelGPT4oMini

	defaultChatTemperature = 0.7
	writerPersona          = "You are a professional content writer."
)

// OpenAIConfig configures OpenAIClient. Zero values select defaults.
type OpenAIConfig struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAIClient calls the OpenAI Chat Completions API with a bearer key
// supplied per call.
type OpenAIClient struct {
	baseURL    string
	model      openai.ChatModel
	timeout    time.Duration
	httpClient *http.Client
}

// NewOpenAIClient builds a client with defaults against api.openai.com.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	c := &OpenAIClient{
		baseURL:    cfg.BaseURL,
		model:      openai.ChatModel(cfg.Model),
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = openAIDefaultBaseURL
	}
	if c.model == "" {
		c.model = openAIDefaultModel
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	return c
}

func (c *OpenAIClient) Name() string {
	return fmt.Sprintf("OpenAI (%s)", c.model)
}

func (c *OpenAIClient) Generate(ctx context.Context, apiKey, prompt string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("nil openai client")
	}
	if apiKey == "" {
		return "", ErrMissingKey
	}

	var text string
	err := bounded(ctx, c.timeout, func(ctx context.Context) error {
		cli := openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(c.baseURL),
			option.WithHTTPClient(c.httpClient),
			option.WithMaxRetries(0),
			option.WithHeader("Cache-Control", "no-store"),
		)
		resp, err := cli.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:       c.model,
			Messages:    buildMessages(writerPersona, prompt),
			Temperature: openai.Float(defaultChatTemperature),
		})
		if err != nil {
			return openAIError(err)
		}
		if len(resp.Choices) > 0 {
			text = strings.TrimSpace(resp.Choices[0].Message.Content)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func buildMessages(system, user string) []openai.ChatCompletionMessageParamUnion {
	return []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(system),
				},
			},
		},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: openai.String(user),
				},
			},
		},
	}
}

func openAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &UpstreamError{
			Provider:   ProviderOpenAI,
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	return &UpstreamError{Provider: ProviderOpenAI, Err: err}
}
