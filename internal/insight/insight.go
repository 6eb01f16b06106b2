// Package insight generates short advisory business summaries from
// sales aggregates. The output is never load-bearing: callers must
// treat a failed or empty summary as "no insight".
package insight

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"queenpos/backend/internal/cache"
)

type Generator struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	cache    cache.InsightCache
	cacheTTL time.Duration
}

func New(ctx context.Context, apiKey string, cacheStore cache.InsightCache, cacheTTL time.Duration) (*Generator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if cacheStore == nil {
		cacheStore = cache.NoopInsightCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	return &Generator{
		client:   client,
		model:    client.GenerativeModel("gemini-2.0-flash-001"),
		cache:    cacheStore,
		cacheTTL: cacheTTL,
	}, nil
}

func (g *Generator) Close() error {
	return g.client.Close()
}

func (g *Generator) Summarize(ctx context.Context, revenueTotal float64, saleCount int) (string, error) {
	key := buildCacheKey(revenueTotal, saleCount)
	if cached, ok, err := g.cache.Get(ctx, key); err == nil && ok {
		return cached, nil
	}

	prompt := fmt.Sprintf(
		"You are a business analyst for a small food distribution company. "+
			"Total revenue to date is %.2f across %d sales. "+
			"Write one short paragraph (max 3 sentences) of practical advice for the owner.",
		revenueTotal, saleCount,
	)

	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate insight: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("generate insight: empty response")
	}

	_ = g.cache.Set(ctx, key, text, g.cacheTTL)
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

func buildCacheKey(revenueTotal float64, saleCount int) string {
	hash := sha1.Sum([]byte(fmt.Sprintf("insight|%.2f|%d", revenueTotal, saleCount)))
	return "pos:insight:" + hex.EncodeToString(hash[:])
}
