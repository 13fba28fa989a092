package adapt

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"

	"github.com/postwire/postwire/app/connector"
)

const ellipsis = "…"

// sentenceCutThreshold controls when truncation snaps back to the last full
// sentence instead of the last word: only when the sentence ending sits past
// 80% of the available budget, so we never throw away most of the text for
// the sake of a clean period.
const sentenceCutThreshold = 0.8

var (
	markdownLinkRegexp   = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	markdownImageRegexp  = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	markdownMarkerRegexp = regexp.MustCompile("[*_~`#>]+")
	hashtagCleanRegexp   = regexp.MustCompile(`[^a-z0-9]`)
	whitespaceRegexp     = regexp.MustCompile(`[ \t]+`)
)

// Result is the outcome of adapting one post for one platform.
type Result struct {
	Content  connector.AdaptedContent
	Score    int
	Warnings []string
}

// Engine transforms canonical posts into platform-compliant content. All
// capability limits are enforced here, deterministically, regardless of what
// the optimizer suggested.
type Engine struct {
	optimizer Optimizer
	markdown  goldmark.Markdown
}

func NewEngine(optimizer Optimizer) *Engine {
	if optimizer == nil {
		optimizer = PassthroughOptimizer{}
	}
	return &Engine{optimizer: optimizer, markdown: goldmark.New()}
}

// Adapt fits the post to the platform's capabilities. The returned body plus
// hashtag block never exceeds MaxContentLength, counted in characters.
func (e *Engine) Adapt(ctx context.Context, post connector.CanonicalPost, platform string, caps connector.Capabilities) Result {
	result := Result{Score: 100}

	body, err := e.optimizer.Optimize(ctx, post, platform, caps.MaxContentLength)
	if err != nil || strings.TrimSpace(body) == "" {
		if err != nil {
			slog.Warn("Optimizer failed, falling back to original body", "platform", platform, "error", err)
		}
		body = post.Body
	}

	if !caps.SupportsMarkdown && looksLikeMarkdown(body) {
		body = e.stripMarkdown(body)
		result.Score -= 5
		result.Warnings = append(result.Warnings, "markdown formatting removed")
	}

	hashtags := e.selectHashtags(post.Tags, caps, &result)

	hashtagBlock := ""
	for {
		hashtagBlock = ""
		if len(hashtags) > 0 {
			hashtagBlock = "\n\n" + hashtagsToLine(hashtags)
		}
		// A tight limit can be eaten by the hashtag block alone; shed
		// hashtags from the end until some room is left for the body
		if caps.MaxContentLength <= 0 || len([]rune(hashtagBlock)) < caps.MaxContentLength || len(hashtags) == 0 {
			break
		}
		hashtags = hashtags[:len(hashtags)-1]
	}

	if caps.MaxContentLength > 0 {
		budget := caps.MaxContentLength - len([]rune(hashtagBlock))
		truncated := false
		body, truncated = truncate(body, budget)
		if truncated {
			result.Score -= 15
			result.Warnings = append(result.Warnings, fmt.Sprintf("body truncated to fit %d characters", caps.MaxContentLength))
		}
	}

	images, videos := e.selectMedia(post, caps, &result)

	if result.Score < 0 {
		result.Score = 0
	}

	result.Content = connector.AdaptedContent{
		Title:    post.Title,
		Body:     body,
		Excerpt:  post.Excerpt,
		Hashtags: hashtags,
		Images:   images,
		Videos:   videos,
		Metadata: map[string]string{},
	}
	if post.CanonicalURL != "" {
		result.Content.Metadata["canonical_url"] = post.CanonicalURL
	}

	return result
}

func (e *Engine) selectHashtags(tags []string, caps connector.Capabilities, result *Result) []string {
	if len(tags) == 0 {
		return nil
	}
	if !caps.SupportsHashtags {
		result.Score -= 5
		result.Warnings = append(result.Warnings, "hashtags not supported, dropped")
		return nil
	}

	seen := map[string]bool{}
	var hashtags []string
	for _, tag := range tags {
		cleaned := hashtagCleanRegexp.ReplaceAllString(strings.ToLower(tag), "")
		if cleaned == "" || seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		hashtags = append(hashtags, cleaned)
	}

	if caps.MaxHashtags > 0 && len(hashtags) > caps.MaxHashtags {
		dropped := len(hashtags) - caps.MaxHashtags
		hashtags = hashtags[:caps.MaxHashtags]
		result.Score -= 5
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d hashtags over platform limit dropped", dropped))
	}
	return hashtags
}

func (e *Engine) selectMedia(post connector.CanonicalPost, caps connector.Capabilities, result *Result) ([]string, []string) {
	var images, videos []string

	if caps.SupportsImages {
		// Featured image leads, the rest follow in post order
		if post.FeaturedImage != "" {
			images = append(images, post.FeaturedImage)
		}
		for _, image := range post.Images {
			if image != post.FeaturedImage {
				images = append(images, image)
			}
		}
		if caps.MaxImagesPerPost > 0 && len(images) > caps.MaxImagesPerPost {
			images = images[:caps.MaxImagesPerPost]
			result.Score -= 10
			result.Warnings = append(result.Warnings, "images over platform limit dropped")
		}
	} else if post.FeaturedImage != "" || len(post.Images) > 0 {
		result.Score -= 10
		result.Warnings = append(result.Warnings, "images not supported, dropped")
	}

	if caps.SupportsVideo {
		videos = post.Videos
		if caps.MaxVideosPerPost > 0 && len(videos) > caps.MaxVideosPerPost {
			videos = videos[:caps.MaxVideosPerPost]
			result.Score -= 10
			result.Warnings = append(result.Warnings, "videos over platform limit dropped")
		}
	} else if len(post.Videos) > 0 {
		result.Score -= 10
		result.Warnings = append(result.Warnings, "videos not supported, dropped")
	}

	return images, videos
}

// truncate cuts text to at most limit characters, breaking on a word
// boundary. When a sentence ends late enough in the kept portion the cut
// snaps to it and the ellipsis is omitted.
func truncate(text string, limit int) (string, bool) {
	if limit <= 0 {
		return "", true
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text, false
	}
	if limit <= len([]rune(ellipsis)) {
		return string(runes[:limit]), true
	}

	keep := runes[:limit-len([]rune(ellipsis))]

	if cut := lastSentenceEnd(keep); cut >= 0 && float64(cut+1) >= sentenceCutThreshold*float64(limit) {
		return strings.TrimSpace(string(keep[:cut+1])), true
	}

	if cut := lastSpace(keep); cut > 0 {
		keep = keep[:cut]
	}
	return strings.TrimSpace(string(keep)) + ellipsis, true
}

func lastSentenceEnd(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		switch runes[i] {
		case '.', '!', '?':
			return i
		}
	}
	return -1
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '\t' {
			return i
		}
	}
	return -1
}

func looksLikeMarkdown(text string) bool {
	return markdownLinkRegexp.MatchString(text) || markdownMarkerRegexp.MatchString(text)
}

// stripMarkdown flattens markdown to plain text by rendering it to HTML and
// extracting the text content. Falls back to regex stripping when the body
// cannot be rendered.
func (e *Engine) stripMarkdown(text string) string {
	var buf bytes.Buffer
	if err := e.markdown.Convert([]byte(text), &buf); err == nil {
		if doc, err := goquery.NewDocumentFromReader(&buf); err == nil {
			return strings.TrimSpace(whitespaceRegexp.ReplaceAllString(doc.Text(), " "))
		}
	}

	text = markdownImageRegexp.ReplaceAllString(text, "$1")
	text = markdownLinkRegexp.ReplaceAllString(text, "$1")
	text = markdownMarkerRegexp.ReplaceAllString(text, "")
	text = whitespaceRegexp.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func hashtagsToLine(hashtags []string) string {
	parts := make([]string, 0, len(hashtags))
	for _, hashtag := range hashtags {
		parts = append(parts, "#"+hashtag)
	}
	return strings.Join(parts, " ")
}
