package ingest

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"

	"github.com/postwire/postwire/app/database"
)

const (
	wordsPerMinute = 200
	excerptLength  = 200
	maxTitleLength = 80
)

var (
	hashtagRegexp    = regexp.MustCompile(`#([a-zA-Z][a-zA-Z0-9_]*)`)
	mentionRegexp    = regexp.MustCompile(`@([a-zA-Z0-9_]+(?:@[a-zA-Z0-9.-]+)?)`)
	linkRegexp       = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
	whitespaceRegexp = regexp.MustCompile(`\s+`)
	retweetRegexp    = regexp.MustCompile(`^RT @\w+:\s*`)
	shortLinkRegexp  = regexp.MustCompile(`https?://t\.co/\w+`)
)

// topicKeywords maps coarse content topics to the words that signal them.
// Matching is intentionally simple; the buckets feed the cross-posting rules
// and a false negative only means no automatic re-share.
var topicKeywords = map[string][]string{
	"programming": {"code", "programming", "software", "developer", "api", "library", "framework", "golang", "python", "javascript", "rust"},
	"webdev":      {"frontend", "backend", "css", "html", "browser", "react", "web"},
	"devops":      {"kubernetes", "docker", "deploy", "infrastructure", "ci/cd", "terraform", "observability", "monitoring"},
	"databases":   {"database", "sql", "postgres", "sqlite", "redis", "query", "index"},
	"ai":          {"machine learning", "neural", "llm", "model", "ai ", "artificial intelligence", "embedding"},
	"security":    {"security", "vulnerability", "encryption", "authentication", "exploit", "cve"},
}

// RawItem is platform content before normalization. Exactly one of Body,
// BodyHTML or BodyMarkdown carries the text.
type RawItem struct {
	Platform       string
	PlatformPostID string
	Source         string
	Title          string
	Body           string
	BodyHTML       string
	BodyMarkdown   string
	Author         string
	URL            string
	Tags           []string
	Media          []string
	Engagement     database.Engagement
	PublishedAt    *time.Time
}

// Normalizer converts raw platform items into the canonical stored form:
// plain-text body, derived title and excerpt, word count, reading time,
// merged tags and topic buckets.
type Normalizer struct {
	markdown goldmark.Markdown
}

func NewNormalizer() *Normalizer {
	return &Normalizer{markdown: goldmark.New()}
}

func (n *Normalizer) Normalize(raw RawItem) (*database.InboundContent, error) {
	if raw.Platform == "" || raw.PlatformPostID == "" {
		return nil, fmt.Errorf("item is missing platform identity")
	}

	text, htmlBody, embeddedMedia, err := n.renderBodies(raw)
	if err != nil {
		return nil, err
	}
	text = retweetRegexp.ReplaceAllString(text, "")
	// Links are collected before the shortened ones are scrubbed from the
	// display body, so nothing the author referenced is lost
	links := uniqueMatches(linkRegexp.FindAllString(text, -1))
	text = shortLinkRegexp.ReplaceAllString(text, "")
	text = cleanWhitespace(text)

	mentions := uniqueSubmatches(mentionRegexp.FindAllStringSubmatch(text, -1))

	words := strings.Fields(text)
	wordCount := len(words)

	readingTime := 0
	if wordCount > 0 {
		readingTime = (wordCount + wordsPerMinute - 1) / wordsPerMinute
	}

	title := cleanWhitespace(raw.Title)
	if title == "" {
		title = deriveTitle(text)
	}

	tags := mergeTags(raw.Tags, hashtagRegexp.FindAllStringSubmatch(text, -1))

	return &database.InboundContent{
		ID:             uuid.NewString(),
		Platform:       raw.Platform,
		PlatformPostID: raw.PlatformPostID,
		Source:         raw.Source,
		Title:          title,
		Body:           text,
		BodyHTML:       htmlBody,
		Excerpt:        makeExcerpt(text),
		Author:         cleanWhitespace(raw.Author),
		URL:            raw.URL,
		Tags:           tags,
		Topics:         detectTopics(text, tags),
		Mentions:       mentions,
		Links:          links,
		Media:          uniqueMatches(append(append([]string{}, raw.Media...), embeddedMedia...)),
		Engagement:     raw.Engagement,
		WordCount:      wordCount,
		ReadingTime:    readingTime,
		PublishedAt:    raw.PublishedAt,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// renderBodies produces the plain-text and HTML forms of the item body.
// Markdown is rendered to HTML first, then text and embedded image URLs are
// extracted from whichever HTML form exists.
func (n *Normalizer) renderBodies(raw RawItem) (string, string, []string, error) {
	html := raw.BodyHTML

	if raw.BodyMarkdown != "" {
		var buf bytes.Buffer
		if err := n.markdown.Convert([]byte(raw.BodyMarkdown), &buf); err != nil {
			return "", "", nil, fmt.Errorf("failed to render markdown: %w", err)
		}
		html = buf.String()
	}

	if html == "" {
		return raw.Body, "", nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to parse content HTML: %w", err)
	}

	var media []string
	doc.Find("img[src]").Each(func(_ int, selection *goquery.Selection) {
		if src, ok := selection.Attr("src"); ok && src != "" {
			media = append(media, src)
		}
	})

	doc.Find("script, style").Remove()
	return doc.Text(), html, media, nil
}

// deriveTitle builds a title from the first sentence of the body, cut at a
// word boundary when too long.
func deriveTitle(text string) string {
	if text == "" {
		return "Untitled"
	}

	candidate := text
	if idx := strings.IndexAny(text, ".!?\n"); idx > 0 {
		candidate = text[:idx]
	}
	candidate = strings.TrimSpace(candidate)

	runes := []rune(candidate)
	if len(runes) > maxTitleLength {
		runes = runes[:maxTitleLength]
		if cut := strings.LastIndex(string(runes), " "); cut > 0 {
			runes = []rune(string(runes)[:cut])
		}
	}
	if len(runes) == 0 {
		return "Untitled"
	}
	return string(runes)
}

func makeExcerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLength {
		return text
	}
	cut := string(runes[:excerptLength])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}

func mergeTags(tags []string, hashtagMatches [][]string) []string {
	seen := map[string]bool{}
	var merged []string

	add := func(tag string) {
		cleaned := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(tag, "#")))
		if cleaned == "" || seen[cleaned] {
			return
		}
		seen[cleaned] = true
		merged = append(merged, cleaned)
	}

	for _, tag := range tags {
		add(tag)
	}
	for _, match := range hashtagMatches {
		add(match[1])
	}
	return merged
}

func detectTopics(text string, tags []string) []string {
	haystack := strings.ToLower(text + " " + strings.Join(tags, " "))

	var topics []string
	for topic, keywords := range topicKeywords {
		for _, keyword := range keywords {
			if strings.Contains(haystack, keyword) {
				topics = append(topics, topic)
				break
			}
		}
	}
	// Map iteration order is random; keep output stable
	sort.Strings(topics)
	return topics
}

func uniqueMatches(matches []string) []string {
	seen := map[string]bool{}
	var unique []string
	for _, match := range matches {
		if seen[match] {
			continue
		}
		seen[match] = true
		unique = append(unique, match)
	}
	return unique
}

func uniqueSubmatches(matches [][]string) []string {
	flat := make([]string, 0, len(matches))
	for _, match := range matches {
		flat = append(flat, match[1])
	}
	return uniqueMatches(flat)
}

func cleanWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRegexp.ReplaceAllString(text, " "))
}
