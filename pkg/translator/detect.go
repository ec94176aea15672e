package translator

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// AutoLanguage as a source asks the detector to pick the language.
const AutoLanguage = "auto"

// Detector guesses the ISO 639-1 code of a text.
type Detector interface {
	Detect(text string) (string, bool)
}

// LinguaDetector restricts detection to a candidate set, which keeps it
// accurate on single words and cheap to build.
type LinguaDetector struct {
	detector lingua.LanguageDetector
}

// NewLinguaDetector builds a detector over the given ISO 639-1 codes.
// Unknown codes are skipped; fewer than two known codes falls back to a
// small default set.
func NewLinguaDetector(codes ...string) *LinguaDetector {
	var langs []lingua.Language
	for _, code := range codes {
		iso := lingua.GetIsoCode639_1FromValue(strings.ToUpper(baseCode(code)))
		lang := lingua.GetLanguageFromIsoCode639_1(iso)
		if lang == lingua.Unknown {
			continue
		}
		langs = append(langs, lang)
	}
	if len(langs) < 2 {
		langs = []lingua.Language{lingua.English, lingua.Thai, lingua.Chinese, lingua.Spanish, lingua.French}
	}
	return &LinguaDetector{
		detector: lingua.NewLanguageDetectorBuilder().FromLanguages(langs...).Build(),
	}
}

func (d *LinguaDetector) Detect(text string) (string, bool) {
	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

// baseCode turns a recognition locale like "en-US" into "en".
func baseCode(code string) string {
	code = strings.TrimSpace(code)
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	return strings.ToLower(code)
}
