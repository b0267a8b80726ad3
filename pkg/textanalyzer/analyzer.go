// Package textanalyzer turns text into the word tokens fed to the hash
// embedder: lower-cased letter and digit runs, optionally without the stop
// words of one language.
package textanalyzer

import (
	"fmt"
	"regexp"
	"strings"
)

type Analyzer interface {
	Analyze(text string) []string
}

// Languages accepted by ForLanguage. The empty language keeps every token.
const (
	English = "english"
	Italian = "italian"
)

var tokenRegex = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Tokenize returns the lower-cased runs of letters and digits in text.
func Tokenize(text string) []string {
	return tokenRegex.FindAllString(strings.ToLower(text), -1)
}

// Plain tokenizes without filtering.
type Plain struct{}

func (Plain) Analyze(text string) []string { return Tokenize(text) }

// StopWords tokenizes and drops the words in Words.
type StopWords struct {
	Words map[string]struct{}
}

func (a StopWords) Analyze(text string) []string {
	tokens := Tokenize(text)
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, stop := a.Words[tok]; !stop {
			kept = append(kept, tok)
		}
	}
	return kept
}

// ForLanguage returns the analyzer for lang.
func ForLanguage(lang string) (Analyzer, error) {
	switch strings.ToLower(lang) {
	case "":
		return Plain{}, nil
	case English:
		return StopWords{Words: englishStopWords}, nil
	case Italian:
		return StopWords{Words: italianStopWords}, nil
	default:
		return nil, fmt.Errorf("unsupported analyzer language %q", lang)
	}
}

var englishStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "he": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"of": {}, "on": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {}, "will": {}, "with": {},
}

var italianStopWords = map[string]struct{}{
	"a": {}, "ad": {}, "al": {}, "allo": {}, "ai": {}, "agli": {}, "all": {}, "agl": {}, "alla": {}, "alle": {},
	"con": {}, "col": {}, "coi": {}, "da": {}, "dal": {}, "dallo": {}, "dai": {}, "dagli": {}, "dall": {}, "dagl": {}, "dalla": {}, "dalle": {},
	"di": {}, "del": {}, "dello": {}, "dei": {}, "degli": {}, "dell": {}, "degl": {}, "della": {}, "delle": {},
	"e": {}, "ed": {}, "in": {}, "nel": {}, "nello": {}, "nei": {}, "negli": {}, "nell": {}, "negl": {}, "nella": {}, "nelle": {},
	"su": {}, "sul": {}, "sullo": {}, "sui": {}, "sugli": {}, "sull": {}, "sugl": {}, "sulla": {}, "sulle": {},
	"per": {}, "tra": {}, "contro": {}, "io": {}, "tu": {}, "lui": {}, "lei": {}, "noi": {}, "voi": {}, "loro": {},
	"mio": {}, "mia": {}, "miei": {}, "mie": {}, "tuo": {}, "tua": {}, "tuoi": {}, "tue": {}, "suo": {}, "sua": {}, "suoi": {}, "sue": {},
	"nostro": {}, "nostra": {}, "nostri": {}, "nostre": {}, "vostro": {}, "vostra": {}, "vostri": {}, "vostre": {},
	"mi": {}, "ti": {}, "ci": {}, "vi": {}, "lo": {}, "la": {}, "li": {}, "le": {}, "gli": {}, "ne": {},
	"il": {}, "un": {}, "uno": {}, "una": {}, "ma": {}, "se": {}, "perché": {}, "anche": {}, "come": {},
	"dov": {}, "dove": {}, "che": {}, "chi": {}, "cui": {}, "non": {}, "più": {}, "quale": {}, "quanto": {}, "quanti": {},
	"quanta": {}, "quante": {}, "quello": {}, "quelli": {}, "quella": {}, "quelle": {}, "questo": {}, "questi": {},
	"questa": {}, "queste": {}, "si": {}, "ho": {}, "hai": {}, "ha": {}, "abbiamo": {}, "avete": {}, "hanno": {},
	"abbia": {}, "abbiate": {}, "abbiano": {}, "avrò": {}, "avrai": {}, "avrà": {}, "avremo": {}, "avrete": {}, "avranno": {},
	"avrei": {}, "avresti": {}, "avrebbe": {}, "avremmo": {}, "avreste": {}, "avrebbero": {}, "avevo": {}, "avevi": {},
	"aveva": {}, "avevamo": {}, "avevate": {}, "avevano": {}, "ebbi": {}, "avesti": {}, "ebbe": {}, "avemmo": {},
	"aveste": {}, "ebbero": {}, "fui": {}, "fosti": {}, "fu": {}, "fummo": {}, "foste": {}, "furono": {},
	"ero": {}, "eri": {}, "era": {}, "eravamo": {}, "eravate": {}, "erano": {}, "sarei": {}, "saresti": {},
	"sarebbe": {}, "saremmo": {}, "sareste": {}, "sarebbero": {}, "sono": {}, "sei": {}, "è": {}, "siamo": {},
	"siete": {}, "sia": {}, "siate": {}, "siano": {}, "sto": {}, "stai": {}, "sta": {}, "stiamo": {}, "state": {}, "stanno": {},
}
