package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/responses"

	"github.com/framepoint/framepoint/fileutil"
	"github.com/framepoint/framepoint/provider"
	"github.com/framepoint/framepoint/searchindex"
)

// ChatReranker orders segments by asking the chat model for a relevance
// ranking as strict-schema JSON. It sits behind the Adapter's fallback, so a
// failure here only costs ranking quality, never the search itself.
type ChatReranker struct {
	client *openai.Client
	model  string
}

func NewChatReranker(client *openai.Client, model string) (*ChatReranker, error) {
	if client == nil {
		return nil, errors.New("NewChatReranker: client is nil")
	}
	if model == "" {
		return nil, errors.New("NewChatReranker: model is empty")
	}
	return &ChatReranker{client: client, model: model}, nil
}

type rankedOrder struct {
	Order []int `json:"order" jsonschema_description:"Segment indices ordered from most to least relevant"`
}

var rankedOrderSchema = provider.GenerateSchema[rankedOrder]()

const rerankPrompt = `You are a retrieval reranking assistant.

You will receive a search query and a numbered list of transcript segments.
Order the segment indices from most to least relevant to the query.

RULES:
- Judge relevance from the segment text only.
- Include every index exactly once.
- Output only JSON matching the schema.`

// Rerank returns the segments reordered by model-judged relevance. Lists of
// fewer than two segments come back unchanged without a model call.
func (r *ChatReranker) Rerank(ctx context.Context, query string, segments []searchindex.Segment) ([]searchindex.Segment, error) {
	if len(segments) < 2 {
		return segments, nil
	}

	format := responses.ResponseFormatTextConfigUnionParam{
		OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:        "RankedOrder",
			Schema:      rankedOrderSchema,
			Strict:      openai.Bool(true),
			Description: openai.String("Relevance-ordered segment indices"),
			Type:        "json_schema",
		},
	}

	params := responses.ResponseNewParams{
		Model:           r.model,
		MaxOutputTokens: openai.Int(800),
		Instructions:    openai.String(rerankPrompt),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(rankInput(query, segments), responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: format,
		},
	}

	resp, err := provider.CallWithRetry(ctx, r.client, params)
	if err != nil {
		return nil, err
	}

	var out rankedOrder
	if err := fileutil.DecodeModelJSON(resp.OutputText(), &out); err != nil {
		return nil, fmt.Errorf("decode rank order: %w", err)
	}
	return applyOrder(segments, out.Order), nil
}

// rankInput renders the query and candidates as the model's user message.
// Segment text is flattened and truncated; ranking needs the gist, not the
// full transcript window.
func rankInput(query string, segments []searchindex.Segment) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n\nSegments:\n", fileutil.SanitizeNewlines(query))
	for i, seg := range segments {
		fmt.Fprintf(&sb, "[%d] %s\n", i, fileutil.SanitizeNewlines(fileutil.Truncate(seg.Text, 300)))
	}
	return sb.String()
}

// applyOrder reorders segments by the given indices. Out-of-range and
// repeated indices are dropped; segments the order missed are appended in
// their original positions so nothing is ever lost to a bad ranking.
func applyOrder(segments []searchindex.Segment, order []int) []searchindex.Segment {
	out := make([]searchindex.Segment, 0, len(segments))
	seen := make([]bool, len(segments))
	for _, idx := range order {
		if idx < 0 || idx >= len(segments) || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, segments[idx])
	}
	for i, taken := range seen {
		if !taken {
			out = append(out, segments[i])
		}
	}
	return out
}
