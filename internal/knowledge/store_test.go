package knowledge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestLoadQuestionsFromJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "questoes", "eletroquimica.json"), `[
		{
			"questao": "Qual é o agente redutor na pilha de Daniell?",
			"alternativas": {"a": "Zinco", "b": "Cobre", "c": "Sulfato", "d": "Água"},
			"resposta_correta": "A"
		}
	]`)

	s := Load(dir)

	if s.QuestionCount() != 1 {
		t.Fatalf("expected 1 question, got %d", s.QuestionCount())
	}
	q, ok := s.Draw()
	if !ok {
		t.Fatal("expected Draw to succeed")
	}
	if q.CorrectLetter != "a" {
		t.Errorf("expected lowercased correct letter a, got %q", q.CorrectLetter)
	}
	if !strings.Contains(q.PromptText, "(A) Zinco") {
		t.Errorf("expected rendered alternative '(A) Zinco' in prompt:\n%s", q.PromptText)
	}
	if !strings.HasPrefix(q.PromptText, "Qual é o agente redutor") {
		t.Errorf("expected prompt to start with the question body:\n%s", q.PromptText)
	}
	if !q.ValidLetter("d") || q.ValidLetter("e") {
		t.Error("expected letters a-d valid and e invalid")
	}
}

func TestLoadQuestionsCapsBankSize(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < 15; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"questao": "Q", "alternativas": {"a": "x", "b": "y"}, "resposta_correta": "b"}`)
	}
	b.WriteString("]")
	writeFile(t, filepath.Join(dir, "questoes", "banco.json"), b.String())

	s := Load(dir)

	if s.QuestionCount() != 10 {
		t.Errorf("expected bank capped at 10, got %d", s.QuestionCount())
	}
}

func TestLoadSkipsMalformedQuestions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "questoes", "banco.json"), `[
		{"questao": "", "alternativas": {"a": "x"}, "resposta_correta": "a"},
		{"questao": "ok", "alternativas": {"a": "x"}, "resposta_correta": "z"},
		{"questao": "ok", "alternativas": {"a": "x", "b": "y"}, "resposta_correta": "b"}
	]`)

	s := Load(dir)

	if s.QuestionCount() != 1 {
		t.Errorf("expected only the well-formed question, got %d", s.QuestionCount())
	}
}

func TestEmptyDirectoryYieldsEmptyStore(t *testing.T) {
	s := Load(t.TempDir())

	if s.QuestionCount() != 0 {
		t.Errorf("expected empty bank, got %d", s.QuestionCount())
	}
	if _, ok := s.Draw(); ok {
		t.Error("expected Draw to fail on empty bank")
	}
	if s.HasCorpus() {
		t.Error("expected no corpus")
	}
}

func TestLoadCorpusTxtAndExcerpt(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "basededados", "pilhas.txt"), strings.Repeat("eletroquímica ", 200))

	s := Load(dir)

	if !s.HasCorpus() {
		t.Fatal("expected corpus loaded")
	}
	if !strings.Contains(s.Excerpt(8000), "--- pilhas.txt ---") {
		t.Error("expected file header in corpus context")
	}
	if got := len([]rune(s.Excerpt(100))); got != 100 {
		t.Errorf("expected excerpt capped at 100 runes, got %d", got)
	}
}

func TestLoadCorpusJSONEntries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "basededados", "eletroquimica.json"), `[
		{"topico": "Pilha de Daniell", "conteudo": "Zinco oxida, cobre reduz.", "palavras_chave": ["pilha", "daniell"]}
	]`)

	s := Load(dir)

	excerpt := s.Excerpt(8000)
	if !strings.Contains(excerpt, "Tópico: Pilha de Daniell") {
		t.Errorf("expected formatted topic line, got:\n%s", excerpt)
	}
	if !strings.Contains(excerpt, "Palavras-chave: pilha, daniell") {
		t.Errorf("expected keyword line, got:\n%s", excerpt)
	}
}
