// Package knowledge loads the reference corpus and the multiple-choice
// question bank from the fixed data directory layout and serves read-only
// lookups. Everything is loaded once at startup and never mutated.
package knowledge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pilhia/pilhia/internal/domain"
)

const (
	corpusSubdir    = "basededados"
	questionsSubdir = "questoes"

	maxCorpusFiles    = 3
	maxCharsPerFile   = 2000
	maxContextChars   = 8000
	maxQuestions      = 10
	maxAlternatives   = 5
	questionFileExt   = ".json"
	corpusTxtFileExt  = ".txt"
	corpusJSONFileExt = ".json"
)

// Store holds the loaded corpus text and question bank.
type Store struct {
	context   string
	questions []*domain.QuizQuestion
}

type questionRecord struct {
	Questao         string            `json:"questao"`
	Alternativas    map[string]string `json:"alternativas"`
	RespostaCorreta string            `json:"resposta_correta"`
}

type corpusEntry struct {
	Topico        string   `json:"topico"`
	Conteudo      string   `json:"conteudo"`
	PalavrasChave []string `json:"palavras_chave"`
}

// Load reads the corpus and question bank under dir. Missing directories or
// unreadable files degrade to an empty store rather than failing startup.
func Load(dir string) *Store {
	s := &Store{
		context:   loadCorpus(filepath.Join(dir, corpusSubdir)),
		questions: loadQuestions(filepath.Join(dir, questionsSubdir)),
	}
	slog.Info("Knowledge base loaded",
		"context_chars", len(s.context),
		"questions", len(s.questions))
	return s
}

// Excerpt returns the concatenated corpus capped at max runes.
func (s *Store) Excerpt(max int) string {
	return truncateRunes(s.context, max)
}

// HasCorpus reports whether any reference text was loaded.
func (s *Store) HasCorpus() bool {
	return s.context != ""
}

// QuestionCount returns the size of the loaded bank.
func (s *Store) QuestionCount() int {
	return len(s.questions)
}

// Draw picks one question uniformly at random. ok is false when the bank is
// empty.
func (s *Store) Draw() (*domain.QuizQuestion, bool) {
	if len(s.questions) == 0 {
		return nil, false
	}
	return s.questions[rand.IntN(len(s.questions))], true
}

func loadCorpus(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("Corpus directory unavailable", "dir", dir, "error", err)
		return ""
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var b strings.Builder
	count := 0
	for _, name := range names {
		if count >= maxCorpusFiles {
			break
		}
		text, ok := readCorpusFile(filepath.Join(dir, name))
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", name, truncateRunes(text, maxCharsPerFile))
		count++
	}
	return truncateRunes(b.String(), maxContextChars)
}

func readCorpusFile(path string) (string, bool) {
	switch filepath.Ext(path) {
	case corpusTxtFileExt:
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("Failed to read corpus file", "path", path, "error", err)
			return "", false
		}
		return string(data), true
	case corpusJSONFileExt:
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("Failed to read corpus file", "path", path, "error", err)
			return "", false
		}
		var items []corpusEntry
		if err := json.Unmarshal(data, &items); err != nil {
			// Single-entry files are stored as one object.
			var single corpusEntry
			if err := json.Unmarshal(data, &single); err != nil {
				slog.Warn("Malformed corpus JSON", "path", path, "error", err)
				return "", false
			}
			items = []corpusEntry{single}
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			parts = append(parts, formatCorpusEntry(item))
		}
		return strings.Join(parts, "\n---\n"), true
	default:
		return "", false
	}
}

func formatCorpusEntry(item corpusEntry) string {
	var b strings.Builder
	if item.Topico != "" {
		fmt.Fprintf(&b, "Tópico: %s\n", item.Topico)
	}
	if item.Conteudo != "" {
		fmt.Fprintf(&b, "Conteúdo: %s\n", item.Conteudo)
	}
	if len(item.PalavrasChave) > 0 {
		fmt.Fprintf(&b, "Palavras-chave: %s\n", strings.Join(item.PalavrasChave, ", "))
	}
	return b.String()
}

// loadQuestions reads the first question file (sorted order) and keeps at
// most maxQuestions well-formed entries.
func loadQuestions(dir string) []*domain.QuizQuestion {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("Question directory unavailable", "dir", dir, "error", err)
		return nil
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == questionFileExt {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	path := filepath.Join(dir, names[0])
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Failed to read question file", "path", path, "error", err)
		return nil
	}

	var records []questionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		var single questionRecord
		if err := json.Unmarshal(data, &single); err != nil {
			slog.Warn("Malformed question JSON", "path", path, "error", err)
			return nil
		}
		records = []questionRecord{single}
	}

	var questions []*domain.QuizQuestion
	for _, rec := range records {
		if len(questions) >= maxQuestions {
			break
		}
		q, ok := buildQuestion(rec)
		if !ok {
			continue
		}
		questions = append(questions, q)
	}
	return questions
}

func buildQuestion(rec questionRecord) (*domain.QuizQuestion, bool) {
	if rec.Questao == "" || len(rec.Alternativas) == 0 || rec.RespostaCorreta == "" {
		return nil, false
	}

	letters := make([]string, 0, len(rec.Alternativas))
	alternatives := make(map[string]string, len(rec.Alternativas))
	for letter, option := range rec.Alternativas {
		alternatives[strings.ToLower(letter)] = option
	}
	for letter := range alternatives {
		letters = append(letters, letter)
	}
	sort.Strings(letters)
	if len(letters) > maxAlternatives {
		letters = letters[:maxAlternatives]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", rec.Questao)
	for _, letter := range letters {
		fmt.Fprintf(&b, "(%s) %s\n", strings.ToUpper(letter), alternatives[letter])
	}

	kept := make(map[string]string, len(letters))
	for _, letter := range letters {
		kept[letter] = alternatives[letter]
	}

	correct := strings.ToLower(strings.TrimSpace(rec.RespostaCorreta))
	if _, ok := kept[correct]; !ok {
		return nil, false
	}

	return &domain.QuizQuestion{
		PromptText:    b.String(),
		Alternatives:  kept,
		Letters:       letters,
		CorrectLetter: correct,
	}, true
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
