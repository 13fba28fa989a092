package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/postwire/postwire/app/connector"
	"github.com/postwire/postwire/app/database"
	"github.com/postwire/postwire/app/distribute"
)

type fakeDistributor struct {
	posts     []*connector.CanonicalPost
	platforms [][]string
}

func (d *fakeDistributor) DistributePost(ctx context.Context, post *connector.CanonicalPost,
	platforms []string, scheduledFor *time.Time) (*distribute.Status, error) {
	d.posts = append(d.posts, post)
	d.platforms = append(d.platforms, platforms)
	return &distribute.Status{DistributionID: "dist-1", PostID: post.ID}, nil
}

func TestRuleSet_MatchByTopic(t *testing.T) {
	rules := &RuleSet{Rules: []Rule{
		{
			Name:           "share-programming",
			SourcePlatform: "medium",
			Topics:         []string{"programming"},
			Targets:        []string{"twitter", "mastodon"},
			Enabled:        true,
		},
	}}

	content := &database.InboundContent{
		Platform: "medium",
		Topics:   []string{"programming", "webdev"},
	}

	targets := rules.Match(content)
	if len(targets) != 2 {
		t.Fatalf("Expected 2 targets, got %v", targets)
	}
}

func TestRuleSet_DisabledRuleIgnored(t *testing.T) {
	rules := &RuleSet{Rules: []Rule{
		{SourcePlatform: "medium", Targets: []string{"twitter"}, Enabled: false},
	}}

	if targets := rules.Match(&database.InboundContent{Platform: "medium"}); len(targets) != 0 {
		t.Errorf("Expected disabled rule to match nothing, got %v", targets)
	}
}

func TestRuleSet_SourcePlatformFiltered(t *testing.T) {
	rules := &RuleSet{Rules: []Rule{
		{SourcePlatform: "medium", Targets: []string{"twitter"}, Enabled: true},
	}}

	if targets := rules.Match(&database.InboundContent{Platform: "devto"}); len(targets) != 0 {
		t.Errorf("Expected rule for another platform to not match, got %v", targets)
	}
}

func TestRuleSet_NeverEchoesToSource(t *testing.T) {
	rules := &RuleSet{Rules: []Rule{
		{Targets: []string{"mastodon", "twitter"}, Enabled: true},
	}}

	targets := rules.Match(&database.InboundContent{Platform: "mastodon"})
	if len(targets) != 1 || targets[0] != "twitter" {
		t.Errorf("Expected source platform excluded from targets, got %v", targets)
	}
}

func TestRuleSet_MinWordCount(t *testing.T) {
	rules := &RuleSet{Rules: []Rule{
		{MinWordCount: 100, Targets: []string{"twitter"}, Enabled: true},
	}}

	if targets := rules.Match(&database.InboundContent{Platform: "medium", WordCount: 50}); len(targets) != 0 {
		t.Errorf("Expected short content to not match, got %v", targets)
	}
	if targets := rules.Match(&database.InboundContent{Platform: "medium", WordCount: 150}); len(targets) != 1 {
		t.Errorf("Expected long content to match, got %v", targets)
	}
}

func TestRuleSet_TargetsDeduplicatedAcrossRules(t *testing.T) {
	rules := &RuleSet{Rules: []Rule{
		{Topics: []string{"programming"}, Targets: []string{"twitter"}, Enabled: true},
		{Tags: []string{"go"}, Targets: []string{"twitter", "mastodon"}, Enabled: true},
	}}

	content := &database.InboundContent{
		Platform: "medium",
		Topics:   []string{"programming"},
		Tags:     []string{"go"},
	}

	targets := rules.Match(content)
	if len(targets) != 2 {
		t.Errorf("Expected deduplicated targets [twitter mastodon], got %v", targets)
	}
}

func TestCrossPoster_OnIngestedDistributesMatches(t *testing.T) {
	rules := &RuleSet{Rules: []Rule{
		{Topics: []string{"programming"}, Targets: []string{"twitter"}, Enabled: true},
	}}
	distributor := &fakeDistributor{}
	crossPoster := NewCrossPoster(rules, distributor)

	crossPoster.OnIngested(&database.InboundContent{
		ID:       "content-1",
		Platform: "medium",
		Title:    "Generics in Go",
		Body:     "A short walkthrough.",
		Topics:   []string{"programming"},
	})

	if len(distributor.posts) != 1 {
		t.Fatalf("Expected 1 distribution, got %d", len(distributor.posts))
	}
	if distributor.posts[0].ID != "ingest-content-1" {
		t.Errorf("Expected post ID derived from content ID, got %q", distributor.posts[0].ID)
	}
	if len(distributor.platforms[0]) != 1 || distributor.platforms[0][0] != "twitter" {
		t.Errorf("Expected distribution to twitter, got %v", distributor.platforms[0])
	}
}

func TestCrossPoster_OnIngestedNoMatchNoDistribution(t *testing.T) {
	rules := &RuleSet{Rules: []Rule{
		{Topics: []string{"programming"}, Targets: []string{"twitter"}, Enabled: true},
	}}
	distributor := &fakeDistributor{}
	crossPoster := NewCrossPoster(rules, distributor)

	crossPoster.OnIngested(&database.InboundContent{
		ID:       "content-2",
		Platform: "medium",
		Topics:   []string{"cooking"},
	})

	if len(distributor.posts) != 0 {
		t.Errorf("Expected no distribution for unmatched content, got %d", len(distributor.posts))
	}
}

func TestLoadRules_FileParsing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yml")
	data := []byte(`rules:
  - name: share-go-posts
    source_platform: devto
    tags: [go]
    targets: [twitter, mastodon]
    enabled: true
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write rules file: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}
	if len(rules.Rules) != 1 {
		t.Fatalf("Expected 1 rule, got %d", len(rules.Rules))
	}
	if rules.Rules[0].Name != "share-go-posts" || !rules.Rules[0].Enabled {
		t.Errorf("Rule fields not parsed correctly: %+v", rules.Rules[0])
	}
}

func TestLoadRules_MissingFileIsEmptySet(t *testing.T) {
	rules, err := LoadRules(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("Expected missing file to load as empty set, got %v", err)
	}
	if len(rules.Rules) != 0 {
		t.Errorf("Expected empty rule set, got %d rules", len(rules.Rules))
	}
}
