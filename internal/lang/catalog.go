package lang

import (
	"sort"
	"strings"
)

// catalog lists the languages the service advertises. Codes follow the
// short forms the synthesis endpoints accept, which keeps a couple of
// legacy spellings ("jw", "tl") alive.
var catalog = map[Code]string{
	"af": "Afrikaans",
	"sq": "Albanian",
	"ar": "Arabic",
	"hy": "Armenian",
	"bn": "Bengali",
	"bs": "Bosnian",
	"ca": "Catalan",
	"hr": "Croatian",
	"cs": "Czech",
	"da": "Danish",
	"nl": "Dutch",
	"en": "English",
	"eo": "Esperanto",
	"et": "Estonian",
	"tl": "Filipino",
	"fi": "Finnish",
	"fr": "French",
	"de": "German",
	"el": "Greek",
	"gu": "Gujarati",
	"hi": "Hindi",
	"hu": "Hungarian",
	"is": "Icelandic",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"jw": "Javanese",
	"kn": "Kannada",
	"km": "Khmer",
	"ko": "Korean",
	"la": "Latin",
	"lv": "Latvian",
	"lt": "Lithuanian",
	"ml": "Malayalam",
	"mr": "Marathi",
	"my": "Myanmar (Burmese)",
	"ne": "Nepali",
	"no": "Norwegian",
	"pl": "Polish",
	"pt": "Portuguese",
	"ro": "Romanian",
	"ru": "Russian",
	"sr": "Serbian",
	"si": "Sinhala",
	"sk": "Slovak",
	"sl": "Slovenian",
	"es": "Spanish",
	"su": "Sundanese",
	"sw": "Swahili",
	"sv": "Swedish",
	"ta": "Tamil",
	"te": "Telugu",
	"th": "Thai",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"ur": "Urdu",
	"vi": "Vietnamese",
	"cy": "Welsh",
	"xh": "Xhosa",
	"yi": "Yiddish",
	"zu": "Zulu",
}

// Entry pairs a code with its display name.
type Entry struct {
	Code Code   `json:"code"`
	Name string `json:"name"`
}

// Name returns the display name for a catalog code.
func Name(c Code) (string, bool) {
	name, ok := catalog[c]
	return name, ok
}

// Supported reports whether the code is in the advertised catalog.
func Supported(c Code) bool {
	_, ok := catalog[c]
	return ok
}

// FromName resolves an English display name back to its code. Some
// recognizers report "english" rather than "en".
func FromName(name string) (Code, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return "", false
	}
	for code, display := range catalog {
		if strings.ToLower(display) == n {
			return code, true
		}
	}
	return "", false
}

// Catalog returns the advertised languages sorted by code.
func Catalog() []Entry {
	entries := make([]Entry, 0, len(catalog))
	for code, name := range catalog {
		entries = append(entries, Entry{Code: code, Name: name})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Code < entries[j].Code })
	return entries
}
