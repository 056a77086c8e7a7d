// Package videosearch gives the agent the ability to search the platform's
// video catalog through the public search API.
package videosearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Abraxas-365/converse/pkg/ai/llm"
	"github.com/Abraxas-365/converse/pkg/logx"
)

const (
	toolName       = "search_videos"
	defaultSort    = "relevance"
	defaultPageLen = 5
	maxPageLen     = 10
)

// Tool implements toolx.Toolx against the platform search endpoint
type Tool struct {
	baseURL string
	client  *http.Client
}

// New creates the search tool pointing at the platform API base URL
func New(baseURL string) *Tool {
	return &Tool{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *Tool) Name() string {
	return toolName
}

func (t *Tool) GetTool() llm.Tool {
	return llm.Tool{
		Type: "function",
		Function: llm.Function{
			Name: toolName,
			Description: "Search the video catalog by keyword across titles and descriptions. " +
				"Use it when the user asks for videos about a topic, by an author, or trending content. " +
				"Returns a list with title, author, view/like/comment counts and a short description.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search keywords",
					},
					"sort": map[string]any{
						"type":        "string",
						"enum":        []string{"relevance", "time", "hot"},
						"description": "Result ordering, defaults to relevance",
					},
					"page": map[string]any{
						"type":        "integer",
						"description": "Page number starting at 1",
					},
					"page_size": map[string]any{
						"type":        "integer",
						"description": "Results per page, at most 10",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

type searchArgs struct {
	Query    string `json:"query"`
	Sort     string `json:"sort"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

type searchResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Total  int `json:"total"`
		Videos []struct {
			Title         string `json:"title"`
			Description   string `json:"description"`
			AuthorName    string `json:"author_name"`
			ViewCount     int64  `json:"view_count"`
			FavoriteCount int64  `json:"favorite_count"`
			CommentCount  int64  `json:"comment_count"`
			PlayURL       string `json:"play_url"`
		} `json:"videos"`
	} `json:"data"`
}

// Call executes a search. Failures come back as readable text for the model
// rather than as errors, so a flaky search API degrades the answer instead
// of killing the turn.
func (t *Tool) Call(ctx context.Context, inputs string) (any, error) {
	var args searchArgs
	if err := json.Unmarshal([]byte(inputs), &args); err != nil {
		return "invalid search arguments: " + err.Error(), nil
	}
	if strings.TrimSpace(args.Query) == "" {
		return "search requires a non-empty query", nil
	}
	if args.Sort == "" {
		args.Sort = defaultSort
	}
	if args.Page < 1 {
		args.Page = 1
	}
	if args.PageSize < 1 {
		args.PageSize = defaultPageLen
	}
	if args.PageSize > maxPageLen {
		args.PageSize = maxPageLen
	}

	params := url.Values{}
	params.Set("q", args.Query)
	params.Set("sort", args.Sort)
	params.Set("page", strconv.Itoa(args.Page))
	params.Set("page_size", strconv.Itoa(args.PageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		t.baseURL+"/api/v1/search/videos?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		logx.Errorf("video search request failed: %v", err)
		return "the search service is temporarily unavailable, try again later", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logx.Errorf("video search returned status %d", resp.StatusCode)
		return "the search service is temporarily unavailable, try again later", nil
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		logx.Errorf("video search returned malformed body: %v", err)
		return "the search service returned an unreadable response", nil
	}

	if !result.Success {
		if result.Message == "" {
			result.Message = "unknown error"
		}
		return "search failed: " + result.Message, nil
	}

	return formatResults(args.Query, result), nil
}

func formatResults(query string, result searchResponse) string {
	videos := result.Data.Videos
	if len(videos) == 0 {
		return fmt.Sprintf("no videos found for %q", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "found %d matching videos, showing the first %d:\n", result.Data.Total, len(videos))

	for i, v := range videos {
		fmt.Fprintf(&b, "%d. [%s]", i+1, v.Title)
		if v.AuthorName != "" {
			fmt.Fprintf(&b, " by @%s", v.AuthorName)
		}

		stats := make([]string, 0, 3)
		if v.ViewCount > 0 {
			stats = append(stats, fmt.Sprintf("views: %d", v.ViewCount))
		}
		if v.FavoriteCount > 0 {
			stats = append(stats, fmt.Sprintf("likes: %d", v.FavoriteCount))
		}
		if v.CommentCount > 0 {
			stats = append(stats, fmt.Sprintf("comments: %d", v.CommentCount))
		}
		if len(stats) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(stats, ", "))
		}

		if v.Description != "" {
			desc := v.Description
			if runes := []rune(desc); len(runes) > 50 {
				desc = string(runes[:50]) + "..."
			}
			fmt.Fprintf(&b, "\n   about: %s", desc)
		}
		if v.PlayURL != "" {
			fmt.Fprintf(&b, "\n   link: %s", v.PlayURL)
		}
		b.WriteString("\n")
	}

	return b.String()
}
