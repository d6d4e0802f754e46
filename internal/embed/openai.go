// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package embed

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	cohorterr "github.com/cohort-dev/cohort/pkg/errors"
)

// OpenAIConfig holds the OpenAI-compatible embeddings endpoint configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // optional, useful for testing against a mock server
}

// OpenAIEncoder implements Encoder using the OpenAI Embeddings API. Any
// OpenAI-compatible endpoint works through BaseURL.
type OpenAIEncoder struct {
	client openaisdk.Client
	model  string
}

// NewOpenAIEncoder creates an encoder. Returns an error if the API key or
// model is missing; callers typically substitute Unavailable in that case.
func NewOpenAIEncoder(cfg OpenAIConfig) (*OpenAIEncoder, error) {
	if cfg.APIKey == "" {
		return nil, cohorterr.New(cohorterr.CodeEmbedUnavailable, "openai: missing api_key in config")
	}
	if cfg.Model == "" {
		return nil, cohorterr.New(cohorterr.CodeEmbedUnavailable, "openai: missing embeddings model in config")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIEncoder{
		client: openaisdk.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

func (e *OpenAIEncoder) ModelID() string {
	return "openai:" + e.model
}

// Encode embeds texts in one request. The response is reordered by index so
// the output always aligns with the input.
func (e *OpenAIEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, cohorterr.New(cohorterr.CodeEmbedRequestInvalid, "cannot encode an empty batch")
	}

	resp, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openaisdk.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, cohorterr.Wrapf(err, cohorterr.CodeEmbedUpstreamFailure, "embeddings request for %d texts", len(texts))
	}

	if len(resp.Data) != len(texts) {
		return nil, cohorterr.Errorf(cohorterr.CodeEmbedResponseInvalid,
			"embeddings response has %d vectors, want %d", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := int(item.Index)
		if idx < 0 || idx >= len(out) {
			return nil, cohorterr.Errorf(cohorterr.CodeEmbedResponseInvalid, "embeddings response index %d out of range", idx)
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		out[idx] = vec
	}

	for i, vec := range out {
		if len(vec) == 0 {
			return nil, cohorterr.Errorf(cohorterr.CodeEmbedResponseInvalid, "embeddings response missing vector for input %d", i)
		}
	}
	return out, nil
}
