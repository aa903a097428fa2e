//
// Tencent is pleased to support the open source community by making tRPC available.
//
// Copyright (C) 2025 Tencent.
// All rights reserved.
//
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

// Package gemini provides a model.Model backed by the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-callgraph-go/log"
	"trpc.group/trpc-go/trpc-callgraph-go/model"
)

var _ model.Model = (*Model)(nil)

const (
	// GoogleAPIKeyEnv is the environment variable read when no key is given.
	GoogleAPIKeyEnv = "GOOGLE_API_KEY"

	defaultChannelBufferSize = 256
)

// Model implements model.Model over the genai client.
type Model struct {
	client            *genai.Client
	name              string
	channelBufferSize int
}

type options struct {
	apiKey            string
	baseURL           string
	channelBufferSize int
	clientConfig      *genai.ClientConfig
}

// Option configures a Model.
type Option func(*options)

// WithAPIKey sets the API key. It defaults to $GOOGLE_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.apiKey = key
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithChannelBufferSize sets the buffer of the response channel.
func WithChannelBufferSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.channelBufferSize = size
		}
	}
}

// WithClientConfig starts from cfg instead of an empty client config. The
// API key and base URL options still apply on top of it.
func WithClientConfig(cfg *genai.ClientConfig) Option {
	return func(o *options) {
		c := *cfg
		o.clientConfig = &c
	}
}

// New creates a Gemini model named name, e.g. "gemini-2.0-flash".
func New(ctx context.Context, name string, opts ...Option) (*Model, error) {
	o := &options{
		apiKey:            os.Getenv(GoogleAPIKeyEnv),
		channelBufferSize: defaultChannelBufferSize,
		clientConfig:      &genai.ClientConfig{},
	}
	for _, opt := range opts {
		opt(o)
	}
	cfg := o.clientConfig
	if cfg.APIKey == "" {
		cfg.APIKey = o.apiKey
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %s is not provided", GoogleAPIKeyEnv)
	}
	if cfg.Backend == genai.BackendUnspecified {
		cfg.Backend = genai.BackendGeminiAPI
	}
	if o.baseURL != "" {
		cfg.HTTPOptions.BaseURL = o.baseURL
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Model{
		client:            client,
		name:              strings.TrimPrefix(name, "models/"),
		channelBufferSize: o.channelBufferSize,
	}, nil
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.name}
}

// GenerateContent implements model.Model.
func (m *Model) GenerateContent(ctx context.Context, request *model.Request) (<-chan *model.Response, error) {
	if request == nil {
		return nil, errors.New("request cannot be nil")
	}
	contents, config := convertRequest(request)
	responseChan := make(chan *model.Response, m.channelBufferSize)
	go func() {
		defer close(responseChan)
		if request.Stream {
			m.handleStreamingResponse(ctx, contents, config, responseChan)
		} else {
			m.handleNonStreamingResponse(ctx, contents, config, responseChan)
		}
	}()
	return responseChan, nil
}

// convertRequest splits system messages into the system instruction and
// maps the rest onto user and model turns.
func convertRequest(request *model.Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{StopSequences: request.Stop}
	if request.MaxTokens != nil {
		config.MaxOutputTokens = int32(*request.MaxTokens)
	}
	if request.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*request.Temperature))
	}
	if request.TopP != nil {
		config.TopP = genai.Ptr(float32(*request.TopP))
	}
	var (
		system   []string
		contents []*genai.Content
	)
	for _, msg := range request.Messages {
		switch msg.Role {
		case model.RoleSystem:
			system = append(system, msg.Content)
		case model.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n"), genai.RoleUser)
	}
	return contents, config
}

func (m *Model) handleNonStreamingResponse(
	ctx context.Context,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	responseChan chan<- *model.Response,
) {
	resp, err := m.client.Models.GenerateContent(ctx, m.name, contents, config)
	var response *model.Response
	if err != nil {
		response = errorResponse(model.ErrorTypeAPIError, err)
	} else {
		response = m.convertResponse(resp)
		response.Object = model.ObjectTypeChatCompletion
		response.Done = true
		for i := range response.Choices {
			response.Choices[i].Message, response.Choices[i].Delta = response.Choices[i].Delta, model.Message{}
		}
	}
	select {
	case responseChan <- response:
	case <-ctx.Done():
	}
}

func (m *Model) handleStreamingResponse(
	ctx context.Context,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	responseChan chan<- *model.Response,
) {
	var (
		text, reasoning strings.Builder
		last            *model.Response
	)
	for resp, err := range m.client.Models.GenerateContentStream(ctx, m.name, contents, config) {
		if err != nil {
			log.Warnf("gemini: stream of %s failed: %v", m.name, err)
			select {
			case responseChan <- errorResponse(model.ErrorTypeStreamError, err):
			case <-ctx.Done():
			}
			return
		}
		partial := m.convertResponse(resp)
		partial.Object = model.ObjectTypeChatCompletionChunk
		partial.IsPartial = true
		if len(partial.Choices) > 0 {
			text.WriteString(partial.Choices[0].Delta.Content)
			reasoning.WriteString(partial.Choices[0].Delta.ReasoningContent)
		}
		last = partial
		select {
		case responseChan <- partial:
		case <-ctx.Done():
			return
		}
	}

	final := &model.Response{
		Object:    model.ObjectTypeChatCompletion,
		Model:     m.name,
		Timestamp: time.Now(),
		Done:      true,
		Choices: []model.Choice{{
			Message: model.Message{
				Role:             model.RoleAssistant,
				Content:          text.String(),
				ReasoningContent: reasoning.String(),
			},
		}},
	}
	if last != nil {
		final.ID = last.ID
		final.Created = last.Created
		final.Usage = last.Usage
		if len(last.Choices) > 0 {
			final.Choices[0].FinishReason = last.Choices[0].FinishReason
		}
	}
	select {
	case responseChan <- final:
	case <-ctx.Done():
	}
}

// convertResponse maps each candidate onto a choice whose Delta holds the
// text of its parts. Thought parts go to the reasoning content.
func (m *Model) convertResponse(resp *genai.GenerateContentResponse) *model.Response {
	response := &model.Response{
		ID:        resp.ResponseID,
		Model:     m.name,
		Timestamp: time.Now(),
	}
	if !resp.CreateTime.IsZero() {
		response.Created = resp.CreateTime.Unix()
	}
	for i, cand := range resp.Candidates {
		choice := model.Choice{Index: i, Delta: model.Message{Role: model.RoleAssistant}}
		if cand.Content != nil {
			var text, reasoning strings.Builder
			for _, part := range cand.Content.Parts {
				if part == nil {
					continue
				}
				if part.Thought {
					reasoning.WriteString(part.Text)
				} else {
					text.WriteString(part.Text)
				}
			}
			choice.Delta.Content = text.String()
			choice.Delta.ReasoningContent = reasoning.String()
		}
		if cand.FinishReason != "" {
			finishReason := strings.ToLower(string(cand.FinishReason))
			choice.FinishReason = &finishReason
		}
		response.Choices = append(response.Choices, choice)
	}
	if u := resp.UsageMetadata; u != nil {
		response.Usage = &model.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return response
}

func errorResponse(errType string, err error) *model.Response {
	return &model.Response{
		Error: &model.ResponseError{
			Message: err.Error(),
			Type:    errType,
		},
		Timestamp: time.Now(),
		Done:      true,
	}
}
