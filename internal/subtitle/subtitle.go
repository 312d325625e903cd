// Package subtitle synthesizes timed caption tracks from narration scripts.
// Timing is estimated from word count at a configurable reading rate; the
// provider gives no per-word timestamps, so cues are placed back-to-back.
package subtitle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultWPM is the reading rate used when the caller passes a non-positive one.
const DefaultWPM = 150

// minCueDuration keeps very short sentences on screen long enough to read.
const minCueDuration = 2 * time.Second

// pauseMarkerRe matches the textual pause markers produced by script
// sanitization, e.g. "[5 second pause]".
var pauseMarkerRe = regexp.MustCompile(`\[(\d+) second pause\]`)

// ellipsisMarkerRe matches a marker together with the ellipses sanitization
// wraps it in. The ellipses must go before sentence splitting; their dots
// would otherwise close chunks of their own.
var ellipsisMarkerRe = regexp.MustCompile(`(?:\.\.\.\s*)?(\[\d+ second pause\])(?:\s*\.\.\.)?`)

// Cue is a single timed caption.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// Track is an ordered sequence of cues.
type Track []Cue

// Synthesize builds a caption track from a sanitized script. The script is
// split into sentence-like chunks on terminal punctuation; each chunk gets a
// duration proportional to its word count, with a 2s floor. A pause marker
// extends the cue holding the text that follows it; a marker with no text
// after it extends the final cue. An empty script yields an empty track.
func Synthesize(script string, wpm int) Track {
	if wpm <= 0 {
		wpm = DefaultWPM
	}

	script = ellipsisMarkerRe.ReplaceAllString(script, " $1 ")
	chunks := splitSentences(script)
	track := make(Track, 0, len(chunks))
	var cursor time.Duration
	index := 1

	for _, chunk := range chunks {
		var pause time.Duration
		for _, m := range pauseMarkerRe.FindAllStringSubmatch(chunk, -1) {
			if n, err := strconv.Atoi(m[1]); err == nil {
				pause += time.Duration(n) * time.Second
			}
		}

		text := pauseMarkerRe.ReplaceAllString(chunk, "")
		text = strings.Join(strings.Fields(text), " ")

		if text == "" {
			// Marker-only chunk: stretch the previous cue rather than
			// emitting an empty one.
			if pause > 0 && len(track) > 0 {
				track[len(track)-1].End += pause
				cursor += pause
			}
			continue
		}

		words := len(strings.Fields(text))
		duration := time.Duration(float64(words) / float64(wpm) * float64(time.Minute))
		if duration < minCueDuration {
			duration = minCueDuration
		}
		duration += pause

		track = append(track, Cue{
			Index: index,
			Start: cursor,
			End:   cursor + duration,
			Text:  text,
		})
		cursor += duration
		index++
	}

	return track
}

// Render serializes the track to the cue text format: sequence number, time
// range, text, blank line. An empty track renders to an empty string.
func (t Track) Render() string {
	if len(t) == 0 {
		return ""
	}

	var b strings.Builder
	for _, c := range t {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			c.Index, FormatTimestamp(c.Start), FormatTimestamp(c.End), c.Text)
	}
	return b.String()
}

// Parse reads a serialized track back into cues.
func Parse(s string) (Track, error) {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSpace(s)
	if s == "" {
		return Track{}, nil
	}

	var track Track
	for _, block := range strings.Split(s, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		lines := strings.SplitN(block, "\n", 3)
		if len(lines) < 3 {
			return nil, fmt.Errorf("subtitle: malformed cue block %q", block)
		}

		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			return nil, fmt.Errorf("subtitle: invalid sequence number %q", lines[0])
		}

		times := strings.Split(lines[1], " --> ")
		if len(times) != 2 {
			return nil, fmt.Errorf("subtitle: invalid time range %q", lines[1])
		}
		start, err := ParseTimestamp(strings.TrimSpace(times[0]))
		if err != nil {
			return nil, err
		}
		end, err := ParseTimestamp(strings.TrimSpace(times[1]))
		if err != nil {
			return nil, err
		}

		track = append(track, Cue{
			Index: index,
			Start: start,
			End:   end,
			Text:  lines[2],
		})
	}
	return track, nil
}

// FormatTimestamp renders a duration as zero-padded HH:MM:SS.mmm.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1_000
	ms -= s * 1_000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// ParseTimestamp parses a HH:MM:SS.mmm timestamp.
func ParseTimestamp(s string) (time.Duration, error) {
	var h, m, sec, ms int64
	if _, err := fmt.Sscanf(s, "%d:%d:%d.%d", &h, &m, &sec, &ms); err != nil {
		return 0, fmt.Errorf("subtitle: invalid timestamp %q", s)
	}
	total := h*3_600_000 + m*60_000 + sec*1_000 + ms
	return time.Duration(total) * time.Millisecond, nil
}

// splitSentences splits a script into chunks ending at terminal punctuation.
// Runs of punctuation (ellipses, "?!") close a single chunk. Any trailing
// text without terminal punctuation becomes a final chunk.
func splitSentences(s string) []string {
	var chunks []string
	var b strings.Builder

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			for i+1 < len(runes) && isTerminal(runes[i+1]) {
				i++
				b.WriteRune(runes[i])
			}
			chunks = append(chunks, b.String())
			b.Reset()
		}
	}
	if strings.TrimSpace(b.String()) != "" {
		chunks = append(chunks, b.String())
	}
	return chunks
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
