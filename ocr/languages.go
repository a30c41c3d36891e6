package ocr

import "strings"

// languageCodes maps human language names to engine language codes.
// Unresolved names are silently dropped during negotiation.
var languageCodes = map[string]string{
	"english":             "eng",
	"german":              "deu",
	"deutsch":             "deu",
	"french":              "fra",
	"spanish":             "spa",
	"italian":             "ita",
	"portuguese":          "por",
	"dutch":               "nld",
	"russian":             "rus",
	"chinese":             "chi_sim",
	"chinese_simplified":  "chi_sim",
	"chinese_traditional": "chi_tra",
	"japanese":            "jpn",
	"korean":              "kor",
	"arabic":              "ara",
	"hindi":               "hin",
	"turkish":             "tur",
	"polish":              "pol",
	"swedish":             "swe",
	"danish":              "dan",
	"norwegian":           "nor",
	"finnish":             "fin",
	"ukrainian":           "ukr",
	"czech":               "ces",
	"greek":               "ell",
	"hebrew":              "heb",
	"thai":                "tha",
	"vietnamese":          "vie",
}

// engineCodes is the set of codes accepted verbatim, so callers may pass
// engine language codes directly.
var engineCodes = func() map[string]bool {
	set := make(map[string]bool, len(languageCodes)+1)
	for _, code := range languageCodes {
		set[code] = true
	}
	set["osd"] = true
	return set
}()

// DefaultLanguages is used when no requested language resolves.
var DefaultLanguages = []string{"eng", "osd"}

// ResolveLanguages maps a primary language and ordered fallbacks through the
// language table, dropping names that do not resolve and duplicates while
// preserving order. An empty outcome yields DefaultLanguages.
func ResolveLanguages(primary string, fallbacks []string) []string {
	var resolved []string
	seen := make(map[string]bool)
	for _, name := range append([]string{primary}, fallbacks...) {
		code, ok := resolve(name)
		if !ok || seen[code] {
			continue
		}
		seen[code] = true
		resolved = append(resolved, code)
	}
	if len(resolved) == 0 {
		return append([]string(nil), DefaultLanguages...)
	}
	return resolved
}

func resolve(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return "", false
	}
	if code, ok := languageCodes[key]; ok {
		return code, true
	}
	if engineCodes[key] {
		return key, true
	}
	return "", false
}
