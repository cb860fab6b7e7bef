// Package news provides regex/keyword heuristics for incoming news text:
// language detection, title cleaning, and topic/ticker extraction. All
// functions are deterministic, stateless and safe for concurrent use.
package news

import (
	"regexp"
	"strings"
)

var (
	// Cyrillic or CJK ranges are a strong language signal on their own.
	cyrillicRe = regexp.MustCompile(`\p{Cyrillic}`)
	cjkRe      = regexp.MustCompile(`\p{Han}|\p{Hiragana}|\p{Katakana}`)

	// Feed titles arrive with source prefixes/suffixes and bracketed tags,
	// e.g. "[LIVE] Fed holds rates - Reuters".
	bracketTagRe   = regexp.MustCompile(`^\s*[\[(][^\])]{1,24}[\])]\s*`)
	sourceSuffixRe = regexp.MustCompile(`\s+[-|–]\s+[A-Z][\w.&\s]{1,32}$`)
	whitespaceRe   = regexp.MustCompile(`\s+`)

	// Cashtags ($AAPL) and bare upper-case tickers of 2-5 letters.
	cashtagRe = regexp.MustCompile(`\$([A-Z]{1,5})\b`)
	tickerRe  = regexp.MustCompile(`\b([A-Z]{2,5})\b`)
)

// Common short English words that look like tickers in headlines.
var tickerStopwords = map[string]bool{
	"A": true, "AN": true, "AND": true, "ARE": true, "AT": true, "BE": true,
	"BY": true, "CEO": true, "CFO": true, "EPS": true, "ETF": true, "EU": true,
	"FED": true, "FOR": true, "GDP": true, "IN": true, "IPO": true, "IS": true,
	"IT": true, "NEW": true, "OF": true, "ON": true, "OR": true, "Q1": true,
	"Q2": true, "Q3": true, "Q4": true, "SEC": true, "THE": true, "TO": true,
	"UP": true, "US": true, "USA": true, "USD": true, "VS": true, "WITH": true,
}

// englishMarkers are frequent function words used for a cheap latin-script
// language call.
var englishMarkers = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "are": true, "was": true, "has": true,
	"have": true, "will": true, "after": true, "over": true, "into": true,
}

// topicKeywords maps a topic tag to the keywords that imply it.
var topicKeywords = map[string][]string{
	"earnings":  {"earnings", "revenue", "profit", "quarterly", "eps", "guidance"},
	"macro":     {"fed", "inflation", "rates", "gdp", "central bank", "ecb", "employment"},
	"m&a":       {"merger", "acquisition", "acquire", "takeover", "buyout"},
	"crypto":    {"bitcoin", "ethereum", "crypto", "blockchain", "token"},
	"energy":    {"oil", "gas", "crude", "opec", "energy", "barrel"},
	"dividends": {"dividend", "payout", "yield", "buyback"},
	"ipo":       {"ipo", "listing", "debut", "public offering"},
}

// DetectLanguage returns a best-effort ISO language code for the text:
// "ru" for Cyrillic, "zh" for CJK, "en" when enough English function words
// appear, otherwise "unknown".
func DetectLanguage(text string) string {
	if text == "" {
		return "unknown"
	}
	if cyrillicRe.MatchString(text) {
		return "ru"
	}
	if cjkRe.MatchString(text) {
		return "zh"
	}

	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return "unknown"
	}

	matches := 0
	for _, w := range words {
		if englishMarkers[strings.Trim(w, ".,!?:;\"'()")] {
			matches++
		}
	}
	if matches > 0 {
		return "en"
	}
	return "unknown"
}

// CleanTitle strips bracketed feed tags, trailing source attributions and
// collapses whitespace, preserving the headline itself.
func CleanTitle(title string) string {
	cleaned := bracketTagRe.ReplaceAllString(title, "")
	cleaned = sourceSuffixRe.ReplaceAllString(cleaned, "")
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// ExtractTopics returns the topic tags whose keywords appear in the text,
// in deterministic (sorted) order.
func ExtractTopics(text string) []string {
	lower := strings.ToLower(text)

	var topics []string
	for _, topic := range sortedTopicKeys() {
		for _, kw := range topicKeywords[topic] {
			if strings.Contains(lower, kw) {
				topics = append(topics, topic)
				break
			}
		}
	}
	return topics
}

// ExtractTickers returns candidate ticker symbols: every cashtag, plus bare
// upper-case words that survive the stopword filter. Order of first
// appearance, deduplicated.
func ExtractTickers(text string) []string {
	seen := make(map[string]bool)
	var tickers []string

	add := func(symbol string) {
		if !seen[symbol] {
			seen[symbol] = true
			tickers = append(tickers, symbol)
		}
	}

	for _, m := range cashtagRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}

	// Bare tickers only count outside cashtags and stopwords.
	stripped := cashtagRe.ReplaceAllString(text, "")
	for _, m := range tickerRe.FindAllStringSubmatch(stripped, -1) {
		if !tickerStopwords[m[1]] {
			add(m[1])
		}
	}

	return tickers
}

// Classify runs the full heuristic set over a raw title.
type Classification struct {
	Title    string   `json:"title"`
	Language string   `json:"language"`
	Topics   []string `json:"topics,omitempty"`
	Tickers  []string `json:"tickers,omitempty"`
}

// Classify cleans the title and attaches language, topics and tickers.
func Classify(rawTitle string) Classification {
	title := CleanTitle(rawTitle)
	return Classification{
		Title:    title,
		Language: DetectLanguage(title),
		Topics:   ExtractTopics(title),
		Tickers:  ExtractTickers(title),
	}
}

func sortedTopicKeys() []string {
	// Stable iteration order for deterministic output.
	return []string{"crypto", "dividends", "earnings", "energy", "ipo", "m&a", "macro"}
}
