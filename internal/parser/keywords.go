package parser

import (
	"strings"

	"github.com/soundline/pricesync/internal/model"
)

// domainKeywords open a candidate in the strict pass. They cover the audio
// equipment vocabulary seen across supplier pricelists.
var domainKeywords = []string{
	"SPEAKER", "AMPLIFIER", "MICROPHONE", "MIXER", "HEADPHONE", "EARPHONE",
	"WOOFER", "TWEETER", "SUBWOOFER", "MONITOR", "SOUNDBAR", "TURNTABLE",
	"RECEIVER", "AVR", "AVC", "AUDIO", "SOUND", "STUDIO", "STAGE", "DJ",
}

// featureTags are marketing feature tokens worth keeping on a record.
var featureTags = []string{
	"8K", "4K", "HEOS", "BLUETOOTH", "WIFI", "WI-FI", "HDMI",
	"DOLBY ATMOS", "DTS", "AIRPLAY", "USB", "OPTICAL",
}

// categoryKeywords maps catalog categories to the tokens that imply them.
// Order matters: the first category with a matching token wins.
var categoryKeywords = []struct {
	category string
	tokens   []string
}{
	{"AV Receivers", []string{"AVR", "AVC", "RECEIVER"}},
	{"Speakers", []string{"SPEAKER", "WOOFER", "TWEETER", "SUBWOOFER", "SOUNDBAR"}},
	{"Amplifiers", []string{"AMPLIFIER", "AMP "}},
	{"Microphones", []string{"MICROPHONE", "MIC "}},
	{"Mixers", []string{"MIXER", "CONSOLE"}},
	{"Headphones", []string{"HEADPHONE", "EARPHONE", "EARBUD"}},
	{"Turntables", []string{"TURNTABLE"}},
	{"Studio Monitors", []string{"MONITOR"}},
}

// knownBrands is the supplier brand vocabulary. Detection is a case-insensitive
// substring match against the candidate's opening line; the display form is
// what lands on the record.
var knownBrands = []struct {
	token   string
	display string
}{
	{"DENON", "Denon"},
	{"MARANTZ", "Marantz"},
	{"JBL", "JBL"},
	{"YAMAHA", "Yamaha"},
	{"BEHRINGER", "Behringer"},
	{"SHURE", "Shure"},
	{"SENNHEISER", "Sennheiser"},
	{"PIONEER", "Pioneer"},
	{"ALLEN & HEATH", "Allen & Heath"},
	{"QSC", "QSC"},
	{"MACKIE", "Mackie"},
	{"AUDIO-TECHNICA", "Audio-Technica"},
	{"SONY", "Sony"},
	{"BOSE", "Bose"},
	{"POLK", "Polk"},
}

// detectCategory returns the catalog category implied by the line, or the
// default category when nothing matches.
func detectCategory(line string) string {
	upper := strings.ToUpper(line)
	for _, c := range categoryKeywords {
		for _, tok := range c.tokens {
			if strings.Contains(upper, tok) {
				return c.category
			}
		}
	}
	return model.DefaultCategory
}

// detectBrand returns the display form of the first brand found in the line,
// or empty when no known brand appears.
func detectBrand(line string) string {
	upper := strings.ToUpper(line)
	for _, b := range knownBrands {
		if strings.Contains(upper, b.token) {
			return b.display
		}
	}
	return ""
}
