// Package openai generates agent replies through an OpenAI-compatible chat
// completions endpoint. A base-URL override makes it work unchanged against
// DeepSeek and similar providers.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dialcare/callvoice/core/respond"
	"github.com/dialcare/callvoice/internal/utils"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"

	defaultInstructions = "You are a friendly dental clinic assistant calling a patient " +
		"to help schedule an appointment. Respond naturally in under 50 words. " +
		"Set end_call once the appointment is settled or the patient declines."
)

// Client prompts a chat-completions endpoint for structured agent replies.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	instructions string

	httpClient *http.Client
}

type ClientOption func(*Client)

func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithInstructions replaces the default system prompt.
func WithInstructions(instructions string) ClientOption {
	return func(c *Client) {
		if instructions != "" {
			c.instructions = instructions
		}
	}
}

// NewClient creates a client authenticated through the OPENAI_API_KEY
// environment variable. OPENAI_BASE_URL switches providers.
func NewClient(opts ...ClientOption) (*Client, error) {
	apiKey, ok := os.LookupEnv("OPENAI_API_KEY")
	if !ok {
		return nil, fmt.Errorf("openai api key not found")
	}

	c := &Client{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		model:        defaultModel,
		instructions: defaultInstructions,
		httpClient:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	if baseURL, ok := os.LookupEnv("OPENAI_BASE_URL"); ok {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// agentReply is the structured output schema requested from the model.
type agentReply struct {
	Response string `json:"response" jsonschema:"title=response,description=The agent's next spoken utterance."`
	EndCall  bool   `json:"end_call" jsonschema:"title=end_call,description=True when the conversation should close after this utterance."`
}

// Generate produces the agent's next utterance for the given caller
// utterance and conversation history.
func (c *Client) Generate(ctx context.Context, utterance string, opts ...respond.PromptOption) (*respond.Reply, error) {
	ctx, span := tracer.Start(ctx, "generate agent reply")
	defer span.End()

	options := respond.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	messages := toMessages(c.instructions, options.Turns)
	messages = append(messages, message{Role: messageRoleUser, Content: utterance})

	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(agentReply{})

	reqBody := chatRequestBody{
		Model:       c.model,
		Messages:    messages,
		Temperature: utils.Ptr(0.7),
		MaxTokens:   utils.Ptr(256),
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaFormat{
				Name:   "agentReply",
				Schema: schema,
				Strict: true,
			},
		},
	}

	span.SetAttributes(attribute.String("request.model", c.model))

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	var responseBody chatResponseBody
	if err := json.Unmarshal(bodyBytes, &responseBody); err != nil {
		return nil, fmt.Errorf("error unmarshalling response body: %w", err)
	}
	if len(responseBody.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	var reply agentReply
	if err := json.Unmarshal([]byte(responseBody.Choices[0].Message.Content), &reply); err != nil {
		return nil, fmt.Errorf("error unmarshalling structured reply: %w", err)
	}

	return &respond.Reply{Text: reply.Response, ShouldClose: reply.EndCall}, nil
}
