// Package dialogue routes a free-text utterance to one of the mutually
// exclusive chat behaviors: voltage calculation, quiz answering, quiz
// continuation, quiz delivery, or a bounded LLM completion.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/pilhia/pilhia/internal/domain"
	"github.com/pilhia/pilhia/internal/potentials"
)

// User-facing literals, kept verbatim from the original product.
const (
	voltageTrigger = "calcular a voltagem de uma pilha de"
	voltageSplit   = "de uma pilha de"

	continuePrompt = "Deseja fazer outra questão? (sim/não)"

	msgBadElectrodes     = "Por favor, especifique exatamente dois eletrodos separados por 'e' (ex: 'cobre e zinco')."
	msgNoQuestions       = "Não há mais questões disponíveis."
	msgContinueAck       = "Ótimo. Deseja mais alguma coisa?"
	msgAIUnconfigured    = "⚠️ Erro: Nenhuma chave da API configurada. A IA não está disponível."
	msgAIUnavailable     = "A IA está indisponível no momento. Tente novamente mais tarde."
	msgNoExplanation     = "(Não foi possível gerar a explicação agora.)"
	electrodeMissingFmt  = "Não encontrei o potencial padrão para '%s'. Verifique a grafia ou se está na tabela."
	voltageReplyFmt      = "A voltagem da pilha com %s e %s é de %.2f V."
	verdictCorrect       = "Você acertou!"
	verdictIncorrect     = "Você errou."
)

// quizTriggers are matched case-insensitively as substrings, in this order.
var quizTriggers = []string{"gerar questões", "questões enem", "questões", "questão"}

// Completer is the black-box completion call: prompt in, text or failure out.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Available() bool
}

// QuestionBank draws one quiz question uniformly at random.
type QuestionBank interface {
	Draw() (*domain.QuizQuestion, bool)
}

// CorpusSource provides the capped reference-text excerpt for prompts.
type CorpusSource interface {
	Excerpt(max int) string
}

// Potentials resolves two electrode names into a cell voltage.
type Potentials interface {
	CellVoltage(a, b string) (cathode, anode string, volts float64, err error)
}

// Limits are the per-boundary rune caps applied to inbound queries, stored
// history entries, prompts, and outbound replies.
type Limits struct {
	Query        int
	StoredQuery  int
	StoredReply  int
	Reply        int
	Context      int
	PromptQuery  int
	HistoryTurns int
}

// DefaultLimits mirrors the caps of the original deployment.
func DefaultLimits() Limits {
	return Limits{
		Query:        500,
		StoredQuery:  200,
		StoredReply:  500,
		Reply:        800,
		Context:      3000,
		PromptQuery:  300,
		HistoryTurns: 3,
	}
}

// turn bundles one utterance with its session for the route handlers.
// The session lock is held by the caller for the whole turn.
type turn struct {
	sess    *domain.Session
	input   string
	lowered string
}

type route struct {
	name   string
	match  func(*turn) bool
	handle func(context.Context, *turn) string
}

// Engine is the per-turn intent router. Routes are evaluated in fixed
// precedence order; the first match wins.
type Engine struct {
	bank   QuestionBank
	table  Potentials
	llm    Completer
	corpus CorpusSource
	limits Limits
	routes []route
}

// New builds an engine over its collaborators.
func New(bank QuestionBank, table Potentials, llm Completer, corpus CorpusSource, limits Limits) *Engine {
	e := &Engine{
		bank:   bank,
		table:  table,
		llm:    llm,
		corpus: corpus,
		limits: limits,
	}
	e.routes = []route{
		{name: "voltage", match: e.isVoltageQuery, handle: e.handleVoltage},
		{name: "quiz_answer", match: isQuizAnswer, handle: e.handleQuizAnswer},
		{name: "continue", match: isContinuation, handle: e.handleContinuation},
		{name: "quiz_request", match: isQuizRequest, handle: e.handleQuizRequest},
		{name: "general", match: func(*turn) bool { return true }, handle: e.handleGeneral},
	}
	return e
}

// Respond routes one utterance and records the exchange in the session
// history. The caller must hold the session's mutex for the whole call so
// concurrent turns for the same chat cannot interleave. All collaborator
// failures are recovered into user-facing text; Respond never errors.
func (e *Engine) Respond(ctx context.Context, sess *domain.Session, input string) string {
	input = Truncate(strings.TrimSpace(input), e.limits.Query)
	t := &turn{sess: sess, input: input, lowered: strings.ToLower(input)}

	var reply, routeName string
	for _, r := range e.routes {
		if r.match(t) {
			reply = r.handle(ctx, t)
			routeName = r.name
			break
		}
	}

	reply = Truncate(reply, e.limits.Reply)
	sess.RecordTurn(Truncate(input, e.limits.StoredQuery), Truncate(reply, e.limits.StoredReply))
	slog.Debug("Turn routed", "chat_id", sess.ID, "route", routeName, "state", sess.State.String())
	return reply
}

func (e *Engine) isVoltageQuery(t *turn) bool {
	return strings.Contains(t.lowered, voltageTrigger)
}

func (e *Engine) handleVoltage(_ context.Context, t *turn) string {
	t.sess.Pending = nil
	t.sess.State = domain.StateIdle

	_, after, _ := strings.Cut(t.lowered, voltageSplit)
	names := parseElectrodes(after)
	if len(names) != 2 {
		return msgBadElectrodes
	}

	cathode, anode, volts, err := e.table.CellVoltage(names[0], names[1])
	if err != nil {
		var nf *potentials.NotFoundError
		if errors.As(err, &nf) {
			return fmt.Sprintf(electrodeMissingFmt, nf.Name)
		}
		return msgBadElectrodes
	}
	return fmt.Sprintf(voltageReplyFmt, capitalize(cathode), capitalize(anode), volts)
}

func isQuizAnswer(t *turn) bool {
	return t.sess.State == domain.StateAwaitingAnswer &&
		t.sess.Pending != nil &&
		t.sess.Pending.ValidLetter(t.lowered)
}

func (e *Engine) handleQuizAnswer(ctx context.Context, t *turn) string {
	q := t.sess.Pending
	verdict := verdictIncorrect
	if t.lowered == q.CorrectLetter {
		verdict = verdictCorrect
	}

	explanation := e.explainAnswer(ctx, t.sess.ID, q)

	// The question stays pending until the continuation prompt is resolved.
	t.sess.State = domain.StateAwaitingContinue
	return fmt.Sprintf("%s A resposta correta é (%s).\n%s\n%s",
		verdict, strings.ToUpper(q.CorrectLetter), explanation, continuePrompt)
}

func isContinuation(t *turn) bool {
	return t.sess.State == domain.StateAwaitingContinue
}

func (e *Engine) handleContinuation(ctx context.Context, t *turn) string {
	switch t.lowered {
	case "sim":
		return e.deliverQuestion(t)
	case "não", "nao":
		t.sess.Pending = nil
		t.sess.State = domain.StateIdle
		return msgContinueAck
	default:
		// Anything else abandons the quiz and is reprocessed as an ordinary
		// query, not discarded.
		t.sess.Pending = nil
		t.sess.State = domain.StateIdle
		return e.handleGeneral(ctx, t)
	}
}

func isQuizRequest(t *turn) bool {
	for _, trigger := range quizTriggers {
		if strings.Contains(t.lowered, trigger) {
			return true
		}
	}
	return false
}

func (e *Engine) handleQuizRequest(_ context.Context, t *turn) string {
	return e.deliverQuestion(t)
}

func (e *Engine) handleGeneral(ctx context.Context, t *turn) string {
	t.sess.Pending = nil
	t.sess.State = domain.StateIdle

	if !e.llm.Available() {
		return msgAIUnconfigured
	}

	answer, err := e.llm.Complete(ctx, systemPrompt, e.buildGeneralPrompt(t))
	if err != nil {
		slog.Warn("Completion failed", "chat_id", t.sess.ID, "error", err)
		return msgAIUnavailable
	}
	return answer
}

// deliverQuestion draws a fresh question and arms the answer state. An empty
// bank clears any pending question and reports the fixed message.
func (e *Engine) deliverQuestion(t *turn) string {
	q, ok := e.bank.Draw()
	if !ok {
		t.sess.Pending = nil
		t.sess.State = domain.StateIdle
		return msgNoQuestions
	}
	t.sess.Pending = q
	t.sess.State = domain.StateAwaitingAnswer
	return q.PromptText
}

func (e *Engine) explainAnswer(ctx context.Context, chatID string, q *domain.QuizQuestion) string {
	if !e.llm.Available() {
		return msgNoExplanation
	}
	explanation, err := e.llm.Complete(ctx, systemPrompt, buildExplanationPrompt(q.PromptText, q.CorrectLetter))
	if err != nil {
		slog.Warn("Explanation completion failed", "chat_id", chatID, "error", err)
		return msgNoExplanation
	}
	return explanation
}

// parseElectrodes splits the tail of a voltage query on the literal " e "
// separator, dropping empty fragments.
func parseElectrodes(s string) []string {
	var names []string
	for _, part := range strings.Split(s, " e ") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
