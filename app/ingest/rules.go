package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/postwire/postwire/app/connector"
	"github.com/postwire/postwire/app/database"
	"github.com/postwire/postwire/app/distribute"
)

// Rule re-shares ingested content to other platforms when it matches. Empty
// Topics or Tags sections match everything from the source platform.
type Rule struct {
	Name           string   `yaml:"name"`
	SourcePlatform string   `yaml:"source_platform"`
	Topics         []string `yaml:"topics"`
	Tags           []string `yaml:"tags"`
	MinWordCount   int      `yaml:"min_word_count"`
	Targets        []string `yaml:"targets"`
	Enabled        bool     `yaml:"enabled"`
}

type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads the cross-posting rules file. A missing file is an empty
// rule set, not an error, since cross-posting is optional.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &RuleSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rules RuleSet
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	return &rules, nil
}

// Match returns the deduplicated target platforms of every rule the content
// satisfies. The content's own platform is never a target; re-posting to the
// source would echo.
func (rs *RuleSet) Match(content *database.InboundContent) []string {
	seen := map[string]bool{}
	var targets []string

	for _, rule := range rs.Rules {
		if !rule.Enabled || !rule.matches(content) {
			continue
		}
		for _, target := range rule.Targets {
			if target == content.Platform || seen[target] {
				continue
			}
			seen[target] = true
			targets = append(targets, target)
		}
	}
	return targets
}

func (r *Rule) matches(content *database.InboundContent) bool {
	if r.SourcePlatform != "" && r.SourcePlatform != content.Platform {
		return false
	}
	if content.WordCount < r.MinWordCount {
		return false
	}
	if len(r.Topics) > 0 && !intersects(r.Topics, content.Topics) {
		return false
	}
	if len(r.Tags) > 0 && !intersects(r.Tags, content.Tags) {
		return false
	}
	return true
}

func intersects(wanted, actual []string) bool {
	for _, w := range wanted {
		for _, a := range actual {
			if w == a {
				return true
			}
		}
	}
	return false
}

// Distributor is the slice of the distribution layer cross-posting needs.
type Distributor interface {
	DistributePost(ctx context.Context, post *connector.CanonicalPost, platforms []string, scheduledFor *time.Time) (*distribute.Status, error)
}

// CrossPoster applies the rule set to freshly ingested content and hands
// matches to the distribution layer.
type CrossPoster struct {
	rules       *RuleSet
	distributor Distributor
	timeout     time.Duration
}

func NewCrossPoster(rules *RuleSet, distributor Distributor) *CrossPoster {
	return &CrossPoster{rules: rules, distributor: distributor, timeout: 30 * time.Second}
}

// OnIngested is wired as the ingestion callback of the webhook processor and
// the feed poller.
func (c *CrossPoster) OnIngested(content *database.InboundContent) {
	targets := c.rules.Match(content)
	if len(targets) == 0 {
		return
	}

	post := &connector.CanonicalPost{
		ID:           "ingest-" + content.ID,
		Title:        content.Title,
		Body:         content.Body,
		Excerpt:      content.Excerpt,
		Tags:         content.Tags,
		Images:       content.Media,
		AuthorName:   content.Author,
		CanonicalURL: content.URL,
		PublishedAt:  content.PublishedAt,
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	status, err := c.distributor.DistributePost(ctx, post, targets, nil)
	if err != nil {
		slog.Error("Cross-post distribution failed", "content_id", content.ID, "platforms", targets, "error", err)
		return
	}
	slog.Info("Cross-posting ingested content", "content_id", content.ID, "platform", content.Platform, "targets", targets, "distribution_id", status.DistributionID)
}
