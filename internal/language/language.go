package language

import "strings"

type entry struct {
	iso2    string
	iso3    []string
	display string
}

var table = []entry{
	{"en", []string{"eng"}, "English"},
	{"es", []string{"spa"}, "Spanish"},
	{"fr", []string{"fra", "fre"}, "French"},
	{"de", []string{"deu", "ger"}, "German"},
	{"it", []string{"ita"}, "Italian"},
	{"pt", []string{"por"}, "Portuguese"},
	{"ja", []string{"jpn"}, "Japanese"},
	{"ko", []string{"kor"}, "Korean"},
	{"zh", []string{"zho", "chi"}, "Chinese"},
	{"ru", []string{"rus"}, "Russian"},
	{"uk", []string{"ukr"}, "Ukrainian"},
	{"ar", []string{"ara"}, "Arabic"},
	{"hi", []string{"hin"}, "Hindi"},
	{"nl", []string{"nld", "dut"}, "Dutch"},
	{"pl", []string{"pol"}, "Polish"},
	{"cs", []string{"ces", "cze"}, "Czech"},
	{"tr", []string{"tur"}, "Turkish"},
	{"sv", []string{"swe"}, "Swedish"},
	{"da", []string{"dan"}, "Danish"},
	{"no", []string{"nor", "nob"}, "Norwegian"},
	{"fi", []string{"fin"}, "Finnish"},
	{"el", []string{"ell", "gre"}, "Greek"},
	{"he", []string{"heb"}, "Hebrew"},
	{"hu", []string{"hun"}, "Hungarian"},
}

var index = func() map[string]*entry {
	m := make(map[string]*entry, len(table)*4)
	for i := range table {
		e := &table[i]
		m[e.iso2] = e
		m[strings.ToLower(e.display)] = e
		for _, code := range e.iso3 {
			m[code] = e
		}
	}
	return m
}()

// lookup accepts ISO 639-1/639-2 codes, English names, and BCP 47 style tags
// such as "en-US" or "pt_BR".
func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := index[code]; ok {
		return e
	}
	if base, _, found := strings.Cut(strings.ReplaceAll(code, "_", "-"), "-"); found {
		return index[base]
	}
	return nil
}

// ToISO2 converts a recognised language code or name to ISO 639-1. Unknown
// two-letter codes pass through; anything else yields "".
func ToISO2(code string) string {
	if e := lookup(code); e != nil {
		return e.iso2
	}
	code = strings.ToLower(strings.TrimSpace(code))
	if len(code) == 2 {
		return code
	}
	return ""
}

// DisplayName returns a human-readable name, "Unknown" for empty input, or the
// uppercased code when it is not recognised.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if e := lookup(code); e != nil {
		return e.display
	}
	return strings.ToUpper(strings.TrimSpace(code))
}
