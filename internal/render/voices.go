package render

// DefaultPresenterID is used when the request does not name a presenter.
const DefaultPresenterID = "amy"

// DefaultVoiceID is returned for presenters with no mapped voice.
const DefaultVoiceID = "en-US-JennyNeural"

// presenterVoices maps a presenter selector to the provider voice used for
// narration. The set mirrors the presenters enabled on the provider account.
var presenterVoices = map[string]string{
	"amy":    "en-US-JennyNeural",
	"daniel": "en-US-GuyNeural",
	"lana":   "en-US-AriaNeural",
	"marcus": "en-US-DavisNeural",
	"sofia":  "en-US-SaraNeural",
}

// VoiceFor returns the narration voice for a presenter. Unknown presenters
// fall back to the default voice rather than failing the request.
func VoiceFor(presenterID string) string {
	if voice, ok := presenterVoices[presenterID]; ok {
		return voice
	}
	return DefaultVoiceID
}
