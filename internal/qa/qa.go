// Package qa implements the retrieval-augmented Q&A assistant over
// completed invoice audits.
package qa

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-audit/internal/store"
	"github.com/sells-group/invoice-audit/pkg/anthropic"
)

// NoIndexAnswer is returned when nothing has been indexed yet. No LLM call
// is made in that case.
const NoIndexAnswer = "No invoices indexed yet."

const rephraseSystemPrompt = `You are a search query optimizer. Rewrite the latest question into a standalone question based on the chat history. If the question is already standalone, return it exactly as is. Return only the rewritten question.`

const answerSystemPrompt = `You are an invoice audit assistant. Answer the question using only the provided invoice audit context. If the context does not contain the answer, say so plainly. Be concise.`

// stopwords are dropped from search terms before retrieval.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "what": true, "which": true,
	"was": true, "were": true, "are": true, "did": true, "does": true,
	"with": true, "about": true, "that": true, "this": true, "any": true,
	"how": true, "why": true, "who": true, "show": true, "list": true,
}

// Assistant answers questions about processed invoices from the indexed
// audit corpus.
type Assistant struct {
	client    anthropic.Client
	store     store.Store
	modelName string
	topK      int
}

// New creates an Assistant. topK bounds how many indexed documents feed each
// answer.
func New(client anthropic.Client, st store.Store, modelName string, topK int) *Assistant {
	if topK <= 0 {
		topK = 3
	}
	return &Assistant{client: client, store: st, modelName: modelName, topK: topK}
}

// IndexRun indexes the audit context for one completed run so later
// questions can retrieve it.
func (a *Assistant) IndexRun(ctx context.Context, invoiceID, fileName, status, vendor string, issues []string, rawText string) error {
	content := fmt.Sprintf("INVOICE: %s\nSTATUS: %s\nVENDOR: %s\nISSUES: %s\nRAW TEXT: %s",
		fileName, status, vendor, strings.Join(issues, "; "), rawText)

	if _, err := a.store.IndexDocument(ctx, invoiceID, fileName, content); err != nil {
		return eris.Wrapf(err, "qa: index run %s", invoiceID)
	}
	return nil
}

// Ask answers a question about processed invoices. Follow-up questions are
// first rephrased into standalone form using the chat history.
func (a *Assistant) Ask(ctx context.Context, question string, history []string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", eris.New("qa: empty question")
	}

	if len(history) > 0 {
		rephrased, err := a.rephrase(ctx, question, history)
		if err != nil {
			return "", err
		}
		zap.L().Debug("qa: rephrased question", zap.String("question", rephrased))
		question = rephrased
	}

	docs, err := a.store.SearchDocuments(ctx, searchTerms(question), a.topK)
	if err != nil {
		return "", eris.Wrap(err, "qa: search documents")
	}
	if len(docs) == 0 {
		return NoIndexAnswer, nil
	}

	var contextText strings.Builder
	for i, doc := range docs {
		if i > 0 {
			contextText.WriteString("\n\n")
		}
		contextText.WriteString(doc.Content)
	}

	temp := 0.0
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.modelName,
		MaxTokens:   1024,
		System:      answerSystemPrompt,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText.String(), question)},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "qa: answer")
	}

	return strings.TrimSpace(resp.Text()), nil
}

func (a *Assistant) rephrase(ctx context.Context, question string, history []string) (string, error) {
	temp := 0.0
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.modelName,
		MaxTokens:   256,
		System:      rephraseSystemPrompt,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf("Chat History:\n%s\n\nLatest Question: %s",
				strings.Join(history, "\n"), question)},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "qa: rephrase")
	}

	rephrased := strings.TrimSpace(resp.Text())
	if rephrased == "" {
		return question, nil
	}
	return rephrased, nil
}

// searchTerms tokenizes a question into retrieval terms, dropping short
// words and stopwords.
func searchTerms(question string) []string {
	fields := strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '-' && r != '_'
	})

	var terms []string
	for _, f := range fields {
		if len(f) < 3 || stopwords[f] {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}
