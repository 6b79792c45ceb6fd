// Package quiz builds review questions from note text.
package quiz

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/orsinium-labs/stopwords"

	"github.com/julianstephens/studylit/internal/constants"
	"github.com/julianstephens/studylit/internal/models"
)

const blank = "_____"

// Generator turns note text into at most max questions. Remote generators plug in here.
type Generator interface {
	Generate(ctx context.Context, text string, max int) ([]models.QuizQuestion, error)
}

// Local makes one fill-in-the-blank question per paragraph, blanking the most frequent
// non-stopword.
type Local struct {
	stop *stopwords.Stopwords
}

func NewLocal() *Local {
	return &Local{stop: stopwords.MustGet("en")}
}

func (g *Local) Generate(ctx context.Context, text string, max int) ([]models.QuizQuestion, error) {
	if max <= 0 {
		max = constants.DefaultQuizQuestions
	}
	var questions []models.QuizQuestion
	for _, para := range paragraphs(text) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(para) < constants.MinQuizSourceLen {
			continue
		}
		keys := g.Keywords(para, 1)
		if len(keys) == 0 {
			continue
		}
		q, ok := cloze(para, keys[0])
		if !ok {
			continue
		}
		questions = append(questions, models.QuizQuestion{Question: q, Answer: keys[0]})
		if len(questions) >= max {
			break
		}
	}
	return questions, nil
}

// Keywords returns up to n words of text by descending frequency, ties alphabetical.
func (g *Local) Keywords(text string, n int) []string {
	freq := map[string]int{}
	for _, w := range words(text) {
		if g.stop != nil && g.stop.Contains(w) {
			continue
		}
		freq[w]++
	}
	keys := make([]string, 0, len(freq))
	for w := range freq {
		keys = append(keys, w)
	}
	sort.Slice(keys, func(i, j int) bool {
		if freq[keys[i]] != freq[keys[j]] {
			return freq[keys[i]] > freq[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

// words returns the lowercase purely alphabetic tokens of text.
func words(text string) []string {
	var out []string
	for _, f := range strings.Fields(text) {
		w := strings.TrimFunc(f, unicode.IsPunct)
		if w == "" || strings.IndexFunc(w, func(r rune) bool { return !unicode.IsLetter(r) }) >= 0 {
			continue
		}
		out = append(out, strings.ToLower(w))
	}
	return out
}

func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// cloze blanks the first whole-word occurrence of keyword.
func cloze(text, keyword string) (string, bool) {
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(keyword) + `\b`)
	if err != nil {
		return "", false
	}
	loc := re.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	return strings.TrimSpace(text[:loc[0]] + blank + text[loc[1]:]), true
}
