package pipeline

import "strings"

// Compose merges an optional caption and an optional transcript into a
// single prompt. Both empty means there is nothing to answer; the caller
// must treat an empty result as a terminal condition. No normalization
// beyond whitespace trimming: interpretation is the generator's job.
func Compose(caption, transcript string) string {
	caption = strings.TrimSpace(caption)
	transcript = strings.TrimSpace(transcript)
	switch {
	case caption == "":
		return transcript
	case transcript == "":
		return caption
	default:
		return caption + " " + transcript
	}
}
