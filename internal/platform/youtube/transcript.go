package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
)

// ErrNoTranscript means the video has no caption track in any supported
// language. This is permanent: callers record it and never retry.
var ErrNoTranscript = errors.New("no transcript available")

type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// JoinSegments flattens a transcript into one text block for analysis.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// FetchTranscriptText is the form the pipeline consumes: the caption track
// flattened into one text block.
func (c *Client) FetchTranscriptText(ctx context.Context, videoExternalID string) (string, error) {
	segments, err := c.FetchTranscript(ctx, videoExternalID)
	if err != nil {
		return "", err
	}
	text := JoinSegments(segments)
	if text == "" {
		return "", ErrNoTranscript
	}
	return text, nil
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

// FetchTranscript downloads the caption track for a video. Track discovery
// goes through the watch page (the caption list is embedded in the player
// config), then the track XML is fetched from the timedtext endpoint.
func (c *Client) FetchTranscript(ctx context.Context, videoExternalID string) ([]Segment, error) {
	tracks, err := c.captionTracks(ctx, videoExternalID)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, ErrNoTranscript
	}

	track := pickTrack(tracks)
	segments, err := c.fetchTrack(ctx, track.BaseURL)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, ErrNoTranscript
	}
	return segments, nil
}

func (c *Client) captionTracks(ctx context.Context, videoExternalID string) ([]captionTrack, error) {
	url := "https://www.youtube.com/watch?v=" + videoExternalID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Language", "en-US,en")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch watch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch watch page: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	const marker = `"captionTracks":`
	idx := strings.Index(string(body), marker)
	if idx < 0 {
		return nil, ErrNoTranscript
	}

	dec := json.NewDecoder(strings.NewReader(string(body[idx+len(marker):])))
	var tracks []captionTrack
	if err := dec.Decode(&tracks); err != nil {
		return nil, fmt.Errorf("parse caption tracks: %w", err)
	}
	return tracks, nil
}

// pickTrack prefers manually-authored English captions, then auto-generated
// English, then whatever exists.
func pickTrack(tracks []captionTrack) captionTrack {
	var asr *captionTrack
	for i := range tracks {
		t := &tracks[i]
		if !strings.HasPrefix(t.LanguageCode, "en") {
			continue
		}
		if t.Kind != "asr" {
			return *t
		}
		if asr == nil {
			asr = t
		}
	}
	if asr != nil {
		return *asr
	}
	return tracks[0]
}

type timedTextDoc struct {
	Texts []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Body  string  `xml:",chardata"`
	} `xml:"text"`
}

func (c *Client) fetchTrack(ctx context.Context, baseURL string) ([]Segment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch caption track: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch caption track: unexpected status %d", resp.StatusCode)
	}

	var doc timedTextDoc
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse caption track: %w", err)
	}

	segments := make([]Segment, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		segments = append(segments, Segment{
			Text:     html.UnescapeString(t.Body),
			Start:    t.Start,
			Duration: t.Dur,
		})
	}
	return segments, nil
}
