package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/buzzposter/buzzposter/internal/admission"
	"github.com/buzzposter/buzzposter/internal/auth/feature"
	"github.com/buzzposter/buzzposter/internal/auth/late"
)

// Deps are the collaborators the built-in tools are wired against.
type Deps struct {
	Tokens    *late.Manager
	Source    ContentSource
	Publisher Publisher
}

// Builtin returns the built-in tool set.
func Builtin(deps Deps) []Tool {
	return []Tool{
		{
			Name:        "buzz_get_topic",
			Description: "Get news articles from built-in topic feeds (tech, business, science).",
			Args: []Arg{
				{Name: "topic", Description: "Topic category (tech, business, science)", Required: true},
			},
			Handler: getTopicHandler(deps.Source),
		},
		{
			Name:        "buzz_search_news",
			Description: "Search news articles by keywords. Requires Pro or Business tier.",
			Feature:     feature.NewsAPISearch,
			Args: []Arg{
				{Name: "query", Description: "Search keywords", Required: true},
				{Name: "language", Description: "Language code (default: en)"},
				{Name: "sort_by", Description: "Sort order: publishedAt, relevancy or popularity"},
			},
			Handler: searchNewsHandler(deps.Source),
		},
		{
			Name:        "buzz_list_social_accounts",
			Description: "List all connected social media accounts. Requires Pro or Business tier.",
			Feature:     feature.SocialPosting,
			Handler:     listAccountsHandler(deps.Tokens),
		},
		{
			Name:        "buzz_post",
			Description: "Post content to a specific social media platform. Requires Pro or Business tier.",
			Feature:     feature.SocialPosting,
			Args: []Arg{
				{Name: "platform", Description: "Platform name (twitter, linkedin, facebook, ...)", Required: true},
				{Name: "content", Description: "Text content to post", Required: true},
				{Name: "media_urls", Description: "Optional comma-separated media URLs to attach"},
				{Name: "account_id", Description: "Optional specific account ID"},
			},
			Handler: postHandler(deps.Tokens, deps.Publisher),
		},
		{
			Name:        "buzz_connection_status",
			Description: "Check whether social accounts are connected and list them.",
			Handler:     connectionStatusHandler(deps.Tokens),
		},
	}
}

func getTopicHandler(source ContentSource) Handler {
	return func(ctx context.Context, tc *admission.TenantContext, args map[string]any) (any, error) {
		topic := stringArg(args, "topic")
		switch topic {
		case "tech", "business", "science":
		default:
			return nil, fmt.Errorf("unknown topic %q, expected tech, business or science", topic)
		}
		articles, err := source.Topic(ctx, topic)
		if err != nil {
			return nil, err
		}
		return map[string]any{"topic": topic, "articles": articles}, nil
	}
}

func searchNewsHandler(source ContentSource) Handler {
	return func(ctx context.Context, tc *admission.TenantContext, args map[string]any) (any, error) {
		query := stringArg(args, "query")
		if query == "" {
			return nil, fmt.Errorf("query is required")
		}
		language := stringArg(args, "language")
		if language == "" {
			language = "en"
		}
		sortBy := stringArg(args, "sort_by")
		if sortBy == "" {
			sortBy = "publishedAt"
		}
		articles, err := source.Search(ctx, query, language, sortBy)
		if err != nil {
			return nil, err
		}
		return map[string]any{"query": query, "articles": articles}, nil
	}
}

func listAccountsHandler(tokens *late.Manager) Handler {
	return func(ctx context.Context, tc *admission.TenantContext, args map[string]any) (any, error) {
		status, err := tokens.ConnectionStatus(ctx, tc.User)
		if err != nil {
			return nil, err
		}
		return status, nil
	}
}

func connectionStatusHandler(tokens *late.Manager) Handler {
	return func(ctx context.Context, tc *admission.TenantContext, args map[string]any) (any, error) {
		status, err := tokens.ConnectionStatus(ctx, tc.User)
		if err != nil {
			return nil, err
		}
		return status, nil
	}
}

func postHandler(tokens *late.Manager, publisher Publisher) Handler {
	return func(ctx context.Context, tc *admission.TenantContext, args map[string]any) (any, error) {
		req := late.PostRequest{
			Platform:  stringArg(args, "platform"),
			Content:   stringArg(args, "content"),
			AccountID: stringArg(args, "account_id"),
		}
		if req.Platform == "" || req.Content == "" {
			return nil, fmt.Errorf("platform and content are required")
		}
		if raw := stringArg(args, "media_urls"); raw != "" {
			for _, u := range strings.Split(raw, ",") {
				if u = strings.TrimSpace(u); u != "" {
					req.MediaURLs = append(req.MediaURLs, u)
				}
			}
		}

		token, err := tokens.LiveToken(ctx, tc.User)
		if err != nil {
			return nil, err
		}

		result, err := publisher.Publish(ctx, token, req)
		if errors.Is(err, late.ErrTokenInvalid) {
			// One reactive refresh, then give up.
			token, err = tokens.RefreshNow(ctx, tc.User)
			if err != nil {
				return nil, err
			}
			result, err = publisher.Publish(ctx, token, req)
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

func stringArg(args map[string]any, name string) string {
	if v, ok := args[name].(string); ok {
		return v
	}
	return ""
}
