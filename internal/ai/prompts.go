package ai

import (
	"fmt"
	"strings"
)

// Transcripts beyond this length are truncated before extraction; the
// predictions worth tracking appear throughout the video, not only at the
// very end, so a hard cap is acceptable.
const maxTranscriptChars = 60000

func extractionPrompt(title, transcript string) string {
	if len(transcript) > maxTranscriptChars {
		transcript = transcript[:maxTranscriptChars]
	}

	return fmt.Sprintf(`You analyze video transcripts from content creators and extract the concrete, falsifiable predictions they make.

A prediction must be a specific claim about a future event or outcome that can later be checked against reality. Ignore vague opinions, hedged maybes and general commentary.

Return a JSON array (possibly empty). Each element:
{"text": "the prediction as stated, quoted or lightly paraphrased",
 "predicted_outcome": "what the creator says will happen",
 "timeframe": "when it is supposed to happen, empty if unstated"}

Video title: %s

Transcript:
%s`, title, transcript)
}

func verificationPrompt(pred ExtractedPrediction, results []SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.Snippet, r.Link)
	}
	evidence := b.String()
	if evidence == "" {
		evidence = "(no search results available)"
	}

	return fmt.Sprintf(`You verify whether a creator's past prediction came true, using the web search results below as evidence.

Prediction: %s
Predicted outcome: %s
Timeframe: %s

Search results:
%s

Return a JSON object:
{"score": 0.0-1.0 (1 = clearly correct, 0 = clearly wrong, intermediate for partially correct or unresolved),
 "outcome": "what actually happened, one or two sentences",
 "explanation": "why you scored it that way"}`,
		pred.Text, pred.PredictedOutcome, pred.Timeframe, evidence)
}
