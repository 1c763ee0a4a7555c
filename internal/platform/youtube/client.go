// Package youtube is the video-platform client: channel listing through the
// Data API v3 and transcript retrieval through the public timedtext caption
// endpoint.
package youtube

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"prediction-tracker/internal/entity"
)

const searchPageSize = 50

type Client struct {
	svc  *ytapi.Service
	http *http.Client

	// courtesy limiter for Data API calls; transcript-job pacing is handled
	// upstream by the queue's staggered delays
	limiter *rate.Limiter
}

func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("youtube: api key is required")
	}

	svc, err := ytapi.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("youtube: create service: %w", err)
	}

	return &Client{
		svc:     svc,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}, nil
}

// ListVideos returns up to max videos published on the channel within
// [from, to], newest first.
func (c *Client) ListVideos(ctx context.Context, channelID string, from, to time.Time, max int) ([]entity.VideoMeta, error) {
	if max <= 0 {
		max = searchPageSize
	}

	var (
		out       []entity.VideoMeta
		pageToken string
	)
	for len(out) < max {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		call := c.svc.Search.List([]string{"snippet"}).
			Context(ctx).
			ChannelId(channelID).
			Type("video").
			Order("date").
			PublishedAfter(from.UTC().Format(time.RFC3339)).
			PublishedBefore(to.UTC().Format(time.RFC3339)).
			MaxResults(searchPageSize)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("youtube: search channel %s: %w", channelID, err)
		}

		for _, item := range resp.Items {
			if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
				continue
			}
			publishedAt, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
			if err != nil {
				continue
			}
			out = append(out, entity.VideoMeta{
				ExternalID:  item.Id.VideoId,
				Title:       item.Snippet.Title,
				PublishedAt: publishedAt,
			})
			if len(out) == max {
				break
			}
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return out, nil
}
