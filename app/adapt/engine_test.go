package adapt

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/postwire/postwire/app/connector"
)

var shortFormCaps = connector.Capabilities{
	MaxContentLength: 280,
	SupportsImages:   true,
	SupportsHashtags: true,
	MaxHashtags:      3,
	MaxImagesPerPost: 4,
}

func TestAdapt_FitsShortFormPlatform(t *testing.T) {
	engine := NewEngine(nil)

	post := connector.CanonicalPost{
		ID:    "post-1",
		Title: "The Future of Web Development",
		Body: "The web platform keeps absorbing ideas from frameworks. Server components, islands, " +
			"streaming hydration and edge rendering all started as library experiments and are now " +
			"converging into something browsers and standards bodies can actually adopt. This post " +
			"walks through the proposals that matter and what they mean for teams maintaining large " +
			"applications over the next five years.",
		Tags:         []string{"webdev", "javascript", "frameworks", "standards", "performance"},
		CanonicalURL: "https://blog.example.com/future-of-web-dev",
	}

	result := engine.Adapt(context.Background(), post, "twitter", shortFormCaps)

	total := len([]rune(result.Content.Body))
	if len(result.Content.Hashtags) > 0 {
		total += len([]rune("\n\n" + hashtagsToLine(result.Content.Hashtags)))
	}
	if total > 280 {
		t.Errorf("Expected body plus hashtags within 280 characters, got %d", total)
	}

	if len(result.Content.Hashtags) > 3 {
		t.Errorf("Expected at most 3 hashtags, got %d", len(result.Content.Hashtags))
	}

	foundTruncationWarning := false
	for _, warning := range result.Warnings {
		if strings.Contains(warning, "truncated") {
			foundTruncationWarning = true
		}
	}
	if !foundTruncationWarning {
		t.Error("Expected a truncation warning for an over-length body")
	}

	if result.Score >= 100 {
		t.Errorf("Expected score below 100 after truncation, got %d", result.Score)
	}
}

func TestAdapt_ShortBodyUntouched(t *testing.T) {
	engine := NewEngine(nil)

	post := connector.CanonicalPost{
		ID:    "post-1",
		Title: "Release notes",
		Body:  "Version 2.1 is out.",
	}

	result := engine.Adapt(context.Background(), post, "twitter", shortFormCaps)

	if result.Content.Body != post.Body {
		t.Errorf("Expected body unchanged, got '%s'", result.Content.Body)
	}
	if result.Score != 100 {
		t.Errorf("Expected perfect score for compliant content, got %d", result.Score)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", result.Warnings)
	}
}

func TestAdapt_HashtagsNormalizedAndDeduplicated(t *testing.T) {
	engine := NewEngine(nil)

	post := connector.CanonicalPost{
		ID:   "post-1",
		Body: "Short update.",
		Tags: []string{"Go Lang", "go-lang", "Testing!"},
	}

	result := engine.Adapt(context.Background(), post, "twitter", shortFormCaps)

	if len(result.Content.Hashtags) != 2 {
		t.Fatalf("Expected 2 hashtags after normalization, got %v", result.Content.Hashtags)
	}
	if result.Content.Hashtags[0] != "golang" || result.Content.Hashtags[1] != "testing" {
		t.Errorf("Expected normalized hashtags [golang testing], got %v", result.Content.Hashtags)
	}
}

func TestAdapt_MarkdownFlattenedForPlainTextPlatform(t *testing.T) {
	engine := NewEngine(nil)

	post := connector.CanonicalPost{
		ID:   "post-1",
		Body: "Read the **full guide** at [our blog](https://blog.example.com) today.",
	}

	result := engine.Adapt(context.Background(), post, "twitter", shortFormCaps)

	if strings.Contains(result.Content.Body, "**") || strings.Contains(result.Content.Body, "](") {
		t.Errorf("Expected markdown markers removed, got '%s'", result.Content.Body)
	}
	if !strings.Contains(result.Content.Body, "full guide") {
		t.Errorf("Expected link and emphasis text preserved, got '%s'", result.Content.Body)
	}

	foundWarning := false
	for _, warning := range result.Warnings {
		if strings.Contains(warning, "markdown") {
			foundWarning = true
		}
	}
	if !foundWarning {
		t.Error("Expected a markdown removal warning")
	}
}

func TestAdapt_UnsupportedMediaDropped(t *testing.T) {
	engine := NewEngine(nil)

	post := connector.CanonicalPost{
		ID:            "post-1",
		Body:          "Post with media.",
		FeaturedImage: "https://cdn.example.com/cover.png",
		Videos:        []string{"https://cdn.example.com/demo.mp4"},
	}
	caps := connector.Capabilities{MaxContentLength: 500}

	result := engine.Adapt(context.Background(), post, "linkedin", caps)

	if len(result.Content.Images) != 0 || len(result.Content.Videos) != 0 {
		t.Error("Expected all media dropped for a text-only platform")
	}
	if result.Score >= 100 {
		t.Errorf("Expected score penalty for dropped media, got %d", result.Score)
	}
}

func TestAdapt_FeaturedImageLeads(t *testing.T) {
	engine := NewEngine(nil)

	post := connector.CanonicalPost{
		ID:            "post-1",
		Body:          "Gallery post.",
		FeaturedImage: "https://cdn.example.com/cover.png",
		Images:        []string{"https://cdn.example.com/a.png", "https://cdn.example.com/cover.png", "https://cdn.example.com/b.png"},
	}

	result := engine.Adapt(context.Background(), post, "twitter", shortFormCaps)

	if len(result.Content.Images) != 3 {
		t.Fatalf("Expected 3 deduplicated images, got %v", result.Content.Images)
	}
	if result.Content.Images[0] != post.FeaturedImage {
		t.Errorf("Expected featured image first, got '%s'", result.Content.Images[0])
	}
}

type failingOptimizer struct{}

func (failingOptimizer) Optimize(ctx context.Context, post connector.CanonicalPost, platform string, maxLength int) (string, error) {
	return "", errors.New("model unavailable")
}

func TestAdapt_OptimizerFailureFallsBack(t *testing.T) {
	engine := NewEngine(failingOptimizer{})

	post := connector.CanonicalPost{ID: "post-1", Body: "Original body."}
	result := engine.Adapt(context.Background(), post, "twitter", shortFormCaps)

	if result.Content.Body != "Original body." {
		t.Errorf("Expected fallback to original body, got '%s'", result.Content.Body)
	}
}

func TestAdapt_NeverExceedsLimit(t *testing.T) {
	engine := NewEngine(nil)
	rng := rand.New(rand.NewSource(42))

	words := []string{"platform", "release", "deploy", "observability", "latency", "rollout", "cache", "stream"}

	for i := 0; i < 200; i++ {
		var builder strings.Builder
		for w := 0; w < rng.Intn(400)+1; w++ {
			builder.WriteString(words[rng.Intn(len(words))])
			builder.WriteString(" ")
		}

		limit := rng.Intn(500) + 50
		caps := connector.Capabilities{
			MaxContentLength: limit,
			SupportsHashtags: true,
			MaxHashtags:      rng.Intn(5) + 1,
		}
		post := connector.CanonicalPost{
			ID:   fmt.Sprintf("post-%d", i),
			Body: builder.String(),
			Tags: words[:rng.Intn(len(words))],
		}

		result := engine.Adapt(context.Background(), post, "twitter", caps)

		total := len([]rune(result.Content.Body))
		if len(result.Content.Hashtags) > 0 {
			total += len([]rune("\n\n" + hashtagsToLine(result.Content.Hashtags)))
		}
		if total > limit {
			t.Fatalf("Iteration %d: content length %d exceeds limit %d", i, total, limit)
		}
		if result.Score < 0 || result.Score > 100 {
			t.Fatalf("Iteration %d: score %d out of range", i, result.Score)
		}
	}
}

func TestTruncate_PrefersSentenceBoundary(t *testing.T) {
	text := "First sentence here. Second sentence follows with more words. And then a trailing fragment that will not fit at all"
	result, truncated := truncate(text, 70)

	if !truncated {
		t.Fatal("Expected truncation")
	}
	if !strings.HasSuffix(result, ".") {
		t.Errorf("Expected cut at sentence boundary, got '%s'", result)
	}
	if len([]rune(result)) > 70 {
		t.Errorf("Expected at most 70 characters, got %d", len([]rune(result)))
	}
}

func TestTruncate_WordBoundaryWithEllipsis(t *testing.T) {
	text := "word another word and more words without any sentence punctuation at all in this run of text"
	result, truncated := truncate(text, 40)

	if !truncated {
		t.Fatal("Expected truncation")
	}
	if !strings.HasSuffix(result, ellipsis) {
		t.Errorf("Expected ellipsis suffix, got '%s'", result)
	}
	if strings.Contains(strings.TrimSuffix(result, ellipsis), "  ") {
		t.Errorf("Expected clean word boundary, got '%s'", result)
	}
	if len([]rune(result)) > 40 {
		t.Errorf("Expected at most 40 characters, got %d", len([]rune(result)))
	}
}
