package render

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// breakTagRe matches inline SSML-style pause tags, e.g. <break time="5s"/>
	// or <break time="0.5s"/>.
	breakTagRe = regexp.MustCompile(`<break\s+time="([0-9]+(?:\.[0-9]+)?)s?"\s*/?>`)
	// markupRe matches any remaining markup tag.
	markupRe = regexp.MustCompile(`<[^>]*>`)
)

// SanitizeScript prepares a script for submission to the render provider,
// which accepts plain narration text only. Pause tags are rewritten to the
// textual marker the subtitle synthesizer understands, with sub-second
// durations rounded up to a whole second; every other tag is stripped.
func SanitizeScript(script string) string {
	out := breakTagRe.ReplaceAllStringFunc(script, func(tag string) string {
		m := breakTagRe.FindStringSubmatch(tag)
		secs, err := strconv.ParseFloat(m[1], 64)
		if err != nil || secs <= 0 {
			return " "
		}
		return fmt.Sprintf("... [%d second pause] ...", int(math.Ceil(secs)))
	})
	out = markupRe.ReplaceAllString(out, "")
	return strings.Join(strings.Fields(out), " ")
}
