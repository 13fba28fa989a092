package connector

import (
	"fmt"
	"sort"
)

// Registry holds all connectors, assembled once at startup. Resolution of a
// platform that was never registered is a startup-time error, not a runtime
// surprise.
type Registry struct {
	connectors map[string]Connector
}

func NewRegistry() *Registry {
	return &Registry{
		connectors: make(map[string]Connector),
	}
}

func (r *Registry) Register(c Connector) error {
	platform := c.Platform()
	if platform == "" {
		return fmt.Errorf("connector has empty platform id")
	}
	if _, exists := r.connectors[platform]; exists {
		return fmt.Errorf("connector %q is already registered", platform)
	}
	r.connectors[platform] = c
	return nil
}

func (r *Registry) Resolve(platform string) (Connector, error) {
	c, ok := r.connectors[platform]
	if !ok {
		return nil, fmt.Errorf("no connector registered for platform %q", platform)
	}
	return c, nil
}

func (r *Registry) All() []Connector {
	all := make([]Connector, 0, len(r.connectors))
	for _, c := range r.connectors {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Platform() < all[j].Platform()
	})
	return all
}

func (r *Registry) Platforms() []string {
	platforms := make([]string, 0, len(r.connectors))
	for platform := range r.connectors {
		platforms = append(platforms, platform)
	}
	sort.Strings(platforms)
	return platforms
}

func (r *Registry) ByCategory(category Category) []Connector {
	var matched []Connector
	for _, c := range r.All() {
		if c.Category() == category {
			matched = append(matched, c)
		}
	}
	return matched
}

// Feature names accepted by WithFeature.
const (
	FeatureImages     = "images"
	FeatureVideo      = "video"
	FeatureHashtags   = "hashtags"
	FeatureMentions   = "mentions"
	FeatureScheduling = "scheduling"
	FeatureMarkdown   = "markdown"
	FeatureDelete     = "delete"
)

func (r *Registry) WithFeature(feature string) []Connector {
	var matched []Connector
	for _, c := range r.All() {
		caps := c.Capabilities()
		supported := false
		switch feature {
		case FeatureImages:
			supported = caps.SupportsImages
		case FeatureVideo:
			supported = caps.SupportsVideo
		case FeatureHashtags:
			supported = caps.SupportsHashtags
		case FeatureMentions:
			supported = caps.SupportsMentions
		case FeatureScheduling:
			supported = caps.SupportsScheduling
		case FeatureMarkdown:
			supported = caps.SupportsMarkdown
		case FeatureDelete:
			supported = caps.SupportsDelete
		}
		if supported {
			matched = append(matched, c)
		}
	}
	return matched
}
