package connector

import (
	"context"
	"time"
)

type Category string

const (
	CategorySocial       Category = "social"
	CategoryBlogging     Category = "blogging"
	CategoryProfessional Category = "professional"
	CategoryNews         Category = "news"
	CategoryCommunity    Category = "community"
)

// Credentials holds per-platform authentication material. Which fields are
// required depends on the platform.
type Credentials struct {
	AccessToken  string            `yaml:"access_token"`
	RefreshToken string            `yaml:"refresh_token"`
	APIKey       string            `yaml:"api_key"`
	Username     string            `yaml:"username"`
	Password     string            `yaml:"password"`
	Extra        map[string]string `yaml:"extra"`
}

// Capabilities describes the static limits of a platform. Defined once per
// connector and never mutated.
type Capabilities struct {
	MaxContentLength   int
	SupportsImages     bool
	SupportsVideo      bool
	SupportsHashtags   bool
	SupportsMentions   bool
	SupportsScheduling bool
	SupportsMarkdown   bool
	SupportsDelete     bool
	MaxHashtags        int
	ImageFormats       []string
	VideoFormats       []string
	MaxImagesPerPost   int
	MaxVideosPerPost   int
}

// CanonicalPost is the platform-agnostic source-of-truth content. It is
// created by an external editorial system and read-only here.
type CanonicalPost struct {
	ID            string     `yaml:"id"`
	Title         string     `yaml:"title"`
	Body          string     `yaml:"body"`
	Excerpt       string     `yaml:"excerpt"`
	Tags          []string   `yaml:"tags"`
	FeaturedImage string     `yaml:"featured_image"`
	Images        []string   `yaml:"images"`
	Videos        []string   `yaml:"videos"`
	AuthorName    string     `yaml:"author_name"`
	CanonicalURL  string     `yaml:"canonical_url"`
	PublishedAt   *time.Time `yaml:"published_at"`
}

// AdaptedContent is the platform-shaped payload produced by the adaptation
// engine and consumed by a connector's Publish.
type AdaptedContent struct {
	Title        string            `json:"title"`
	Body         string            `json:"body"`
	Excerpt      string            `json:"excerpt,omitempty"`
	Hashtags     []string          `json:"hashtags,omitempty"`
	Mentions     []string          `json:"mentions,omitempty"`
	Images       []string          `json:"images,omitempty"`
	Videos       []string          `json:"videos,omitempty"`
	ScheduledFor *time.Time        `json:"scheduled_for,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// PublishResult is the outcome of one connector publish call.
type PublishResult struct {
	Success        bool              `json:"success"`
	PlatformPostID string            `json:"platform_post_id,omitempty"`
	PlatformURL    string            `json:"platform_url,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Status is a read-only health probe result.
type Status struct {
	Online    bool          `json:"online"`
	Latency   time.Duration `json:"latency"`
	CheckedAt time.Time     `json:"checked_at"`
	Error     string        `json:"error,omitempty"`
}

// RateLimitState is advisory, updated from the platform's own rate-limit
// response headers where available.
type RateLimitState struct {
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Connector is the contract every platform integration implements.
// Capabilities is pure; all other operations may perform I/O and take a
// context. Publish either returns a usable external id or reports failure,
// never a partial in-between (multi-step flows report sub-step outcomes in
// PublishResult.Metadata).
type Connector interface {
	Platform() string
	DisplayName() string
	Category() Category
	Capabilities() Capabilities

	Authenticate(ctx context.Context, creds Credentials) error
	Publish(ctx context.Context, content AdaptedContent) (PublishResult, error)
	Delete(ctx context.Context, externalID string) error
	Health(ctx context.Context) Status
	RateLimit() RateLimitState
}
