package distribute

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/postwire/postwire/app/connector"
)

// PostSource resolves canonical posts by ID.
type PostSource interface {
	GetPost(postID string) (*connector.CanonicalPost, error)
}

// NotFoundError reports a missing post or distribution.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

var postIDRegexp = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// DirSource reads canonical posts from YAML files in a directory, one file
// per post named <id>.yml.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) GetPost(postID string) (*connector.CanonicalPost, error) {
	// IDs come straight from API requests, so reject anything that could
	// escape the posts directory
	if !postIDRegexp.MatchString(postID) {
		return nil, &NotFoundError{Resource: "post", ID: postID}
	}

	data, err := os.ReadFile(filepath.Join(s.dir, postID+".yml"))
	if os.IsNotExist(err) {
		return nil, &NotFoundError{Resource: "post", ID: postID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read post file: %w", err)
	}

	var post connector.CanonicalPost
	if err := yaml.Unmarshal(data, &post); err != nil {
		return nil, fmt.Errorf("failed to parse post file: %w", err)
	}
	if post.ID == "" {
		post.ID = postID
	}
	return &post, nil
}
