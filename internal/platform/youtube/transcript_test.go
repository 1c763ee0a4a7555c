package youtube

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

// routeTripper serves canned responses by URL substring, so transcript
// retrieval can be exercised without touching the network.
type routeTripper struct {
	routes map[string]response
}

type response struct {
	status int
	body   string
}

func (rt *routeTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for substr, resp := range rt.routes {
		if strings.Contains(req.URL.String(), substr) {
			return &http.Response{
				StatusCode: resp.status,
				Body:       io.NopCloser(strings.NewReader(resp.body)),
				Header:     make(http.Header),
				Request:    req,
			}, nil
		}
	}
	return nil, errors.New("no route for " + req.URL.String())
}

func testClient(routes map[string]response) *Client {
	return &Client{http: &http.Client{Transport: &routeTripper{routes: routes}}}
}

const watchPageWithTracks = `<html>var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"https://captions.example/track-en","languageCode":"en","kind":""}]}}}</html>`

const trackXML = `<?xml version="1.0" encoding="utf-8"?>
<transcript>
  <text start="0.0" dur="2.5">I think bitcoin</text>
  <text start="2.5" dur="3.0">will hit 100k &amp; beyond</text>
  <text start="5.5" dur="1.0">   </text>
</transcript>`

func TestFetchTranscriptText(t *testing.T) {
	c := testClient(map[string]response{
		"youtube.com/watch": {status: http.StatusOK, body: watchPageWithTracks},
		"captions.example":  {status: http.StatusOK, body: trackXML},
	})

	text, err := c.FetchTranscriptText(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "I think bitcoin will hit 100k & beyond"
	if text != want {
		t.Fatalf("expected %q, got %q", want, text)
	}
}

func TestFetchTranscript_NoCaptionsIsPermanent(t *testing.T) {
	c := testClient(map[string]response{
		"youtube.com/watch": {status: http.StatusOK, body: `<html>no captions here</html>`},
	})

	_, err := c.FetchTranscript(context.Background(), "vid-1")
	if !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript, got %v", err)
	}
}

func TestFetchTranscript_EmptyTrackIsPermanent(t *testing.T) {
	c := testClient(map[string]response{
		"youtube.com/watch": {status: http.StatusOK, body: watchPageWithTracks},
		"captions.example":  {status: http.StatusOK, body: `<transcript></transcript>`},
	})

	_, err := c.FetchTranscript(context.Background(), "vid-1")
	if !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript, got %v", err)
	}
}

func TestFetchTranscript_ServerErrorIsTransient(t *testing.T) {
	c := testClient(map[string]response{
		"youtube.com/watch": {status: http.StatusServiceUnavailable, body: ""},
	})

	_, err := c.FetchTranscript(context.Background(), "vid-1")
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, ErrNoTranscript) {
		t.Fatalf("a 503 must not be treated as permanently unavailable: %v", err)
	}
}

func TestPickTrack(t *testing.T) {
	manualEN := captionTrack{BaseURL: "manual-en", LanguageCode: "en", Kind: ""}
	asrEN := captionTrack{BaseURL: "asr-en", LanguageCode: "en", Kind: "asr"}
	manualDE := captionTrack{BaseURL: "manual-de", LanguageCode: "de", Kind: ""}

	cases := []struct {
		name   string
		tracks []captionTrack
		want   string
	}{
		{"manual english wins over asr", []captionTrack{asrEN, manualEN}, "manual-en"},
		{"asr english wins over other languages", []captionTrack{manualDE, asrEN}, "asr-en"},
		{"en variants count as english", []captionTrack{manualDE, {BaseURL: "en-gb", LanguageCode: "en-GB"}}, "en-gb"},
		{"fallback to first track", []captionTrack{manualDE}, "manual-de"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := pickTrack(tc.tracks).BaseURL; got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestJoinSegments_SkipsBlankSegments(t *testing.T) {
	got := JoinSegments([]Segment{
		{Text: " hello "},
		{Text: "  "},
		{Text: "world"},
	})
	if got != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", got)
	}
}
