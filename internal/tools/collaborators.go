package tools

import (
	"context"
	"time"

	"github.com/buzzposter/buzzposter/internal/auth/late"
)

// Article is a normalized news item from a content source.
type Article struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description,omitempty"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// ContentSource is the content-sourcing collaborator. Implementations are
// stateless REST clients living outside the admission core.
type ContentSource interface {
	Topic(ctx context.Context, topic string) ([]Article, error)
	Search(ctx context.Context, query, language, sortBy string) ([]Article, error)
}

// Publisher is the social-posting collaborator. The access token it receives
// comes from the token lifecycle manager and is live at the moment of call.
type Publisher interface {
	Publish(ctx context.Context, accessToken string, req late.PostRequest) (*late.PostResult, error)
}
