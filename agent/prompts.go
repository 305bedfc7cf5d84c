package agent

import "strings"

// Default prompt templates for the LLM-backed stage implementations.
// Templates substitute {question} with the original question and {query}
// with the most refined query available; custom templates passed through
// WithPromptTemplate use the same placeholders.
const (
	defaultRewritePrompt = `You are a search query optimizer.
Rewrite the user question into a single, self-contained search query.
Resolve pronouns, drop filler words, and keep every constraint the question states.
Output ONLY the rewritten query on one line. No numbering, no explanations.

Question: {query}`

	defaultExpandPrompt = `You are a search query expander.
Broaden the query below with synonyms, alternate phrasings, and closely related terms so a lexical search matches more relevant documents.
Keep the result a single line of search terms. Output ONLY the expanded query.

Query: {query}`

	defaultDecomposePrompt = `You are a question decomposer.
Split the question below into the minimal set of independently searchable sub-questions.
If the question is already atomic, return it as the only element.
Respond with a JSON array of strings and nothing else, e.g. ["first sub-question", "second sub-question"].

Question: {query}`

	defaultSelectPrompt = `You are a collection router for a document search system.
Given the question and the available collections, choose every collection likely to contain relevant documents.
Respond with JSON and nothing else: {"collections": ["name", ...], "reasoning": "one sentence"}.

Question: {question}

Available collections:
{collections}`

	defaultRerankPrompt = `Rate how relevant the passage is for answering the question on a scale from 0 to 10.
0 means unrelated, 10 means it directly answers the question.
Respond with JSON and nothing else: {"score": N}.

Question: {question}

Passage:
{passage}`

	defaultAnswerPrompt = `Answer the question using ONLY the provided context passages.
If the context does not contain the answer, say so plainly instead of guessing.
Be concise and factual.

Question: {question}`

	defaultSufficiencyPrompt = `You are judging whether retrieved passages contain enough information to answer a question.
Respond with JSON and nothing else:
{"sufficient": true|false, "missing": "what is missing, empty if nothing", "follow_up_query": "a better search query to fill the gap, empty if none"}.

Question: {question}`

	defaultGroundednessPrompt = `You are judging whether an answer is grounded in the provided context passages.
An answer is grounded when every claim it makes is supported by the context.
Respond with JSON and nothing else: {"grounded": true|false, "feedback": "what is unsupported, empty if grounded"}.

Question: {question}

Answer:
{answer}`

	defaultCorrectionPrompt = `Your previous answer was judged not grounded in the provided context.
Write an improved answer that only makes claims supported by the context passages.

Question: {question}

Previous answer:
{answer}

Judge feedback:
{feedback}`
)

// renderPrompt fills the {question} and {query} placeholders.
func renderPrompt(template, question, query string) string {
	out := strings.ReplaceAll(template, "{question}", question)
	return strings.ReplaceAll(out, "{query}", query)
}

// formatCatalog renders catalog entries one per line for the select prompt.
func formatCatalog(catalog []Collection) string {
	lines := make([]string, 0, len(catalog))
	for _, col := range catalog {
		if col.Description != "" {
			lines = append(lines, "- "+col.Name+": "+col.Description)
		} else {
			lines = append(lines, "- "+col.Name)
		}
	}
	return strings.Join(lines, "\n")
}
