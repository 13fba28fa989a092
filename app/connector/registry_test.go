package connector

import (
	"context"
	"testing"
)

type fakeConnector struct {
	platform string
	category Category
	caps     Capabilities
}

func (f *fakeConnector) Platform() string           { return f.platform }
func (f *fakeConnector) DisplayName() string        { return f.platform }
func (f *fakeConnector) Category() Category         { return f.category }
func (f *fakeConnector) Capabilities() Capabilities { return f.caps }

func (f *fakeConnector) Authenticate(ctx context.Context, creds Credentials) error {
	return nil
}

func (f *fakeConnector) Publish(ctx context.Context, content AdaptedContent) (PublishResult, error) {
	return PublishResult{Success: true, PlatformPostID: "fake-1"}, nil
}

func (f *fakeConnector) Delete(ctx context.Context, externalID string) error {
	return Unsupported(f.platform, "delete")
}

func (f *fakeConnector) Health(ctx context.Context) Status {
	return Status{Online: true}
}

func (f *fakeConnector) RateLimit() RateLimitState {
	return RateLimitState{}
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	registry := NewRegistry()

	err := registry.Register(&fakeConnector{platform: "twitter", category: CategorySocial})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	c, err := registry.Resolve("twitter")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if c.Platform() != "twitter" {
		t.Errorf("Expected platform 'twitter', got '%s'", c.Platform())
	}
}

func TestRegistry_ResolveUnknownPlatform(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Resolve("myspace")
	if err == nil {
		t.Error("Expected error resolving unregistered platform")
	}
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register(&fakeConnector{platform: "devto"}); err != nil {
		t.Fatalf("First registration failed: %v", err)
	}
	if err := registry.Register(&fakeConnector{platform: "devto"}); err == nil {
		t.Error("Expected error registering the same platform twice")
	}
}

func TestRegistry_ByCategory(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&fakeConnector{platform: "twitter", category: CategorySocial})
	registry.Register(&fakeConnector{platform: "mastodon", category: CategorySocial})
	registry.Register(&fakeConnector{platform: "medium", category: CategoryBlogging})

	social := registry.ByCategory(CategorySocial)
	if len(social) != 2 {
		t.Errorf("Expected 2 social connectors, got %d", len(social))
	}

	blogging := registry.ByCategory(CategoryBlogging)
	if len(blogging) != 1 {
		t.Errorf("Expected 1 blogging connector, got %d", len(blogging))
	}
}

func TestRegistry_WithFeature(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&fakeConnector{
		platform: "mastodon",
		caps:     Capabilities{SupportsScheduling: true, SupportsHashtags: true},
	})
	registry.Register(&fakeConnector{
		platform: "discord",
		caps:     Capabilities{SupportsMarkdown: true},
	})

	scheduling := registry.WithFeature(FeatureScheduling)
	if len(scheduling) != 1 || scheduling[0].Platform() != "mastodon" {
		t.Errorf("Expected only mastodon to support scheduling, got %d connectors", len(scheduling))
	}

	video := registry.WithFeature(FeatureVideo)
	if len(video) != 0 {
		t.Errorf("Expected no connectors with video support, got %d", len(video))
	}
}

func TestRegistry_PlatformsSorted(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&fakeConnector{platform: "twitter"})
	registry.Register(&fakeConnector{platform: "devto"})
	registry.Register(&fakeConnector{platform: "mastodon"})

	platforms := registry.Platforms()
	expected := []string{"devto", "mastodon", "twitter"}
	if len(platforms) != len(expected) {
		t.Fatalf("Expected %d platforms, got %d", len(expected), len(platforms))
	}
	for i, platform := range expected {
		if platforms[i] != platform {
			t.Errorf("Expected platform %d to be '%s', got '%s'", i, platform, platforms[i])
		}
	}
}
