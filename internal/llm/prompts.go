package llm

import "fmt"

// SystemPromptDocumentQA grounds answers strictly in retrieved document
// context.
const SystemPromptDocumentQA = `You are a document analysis assistant.
Answer questions based strictly on the provided document context.
Quote relevant parts of the document when possible.
If the answer is not in the documents, say "I cannot find this information in the provided documents."`

// SystemPromptGeneralQA is used for conversational queries where history is
// folded into the prompt.
const SystemPromptGeneralQA = `You are a helpful AI assistant for data analysis.
You have access to relevant context from documents and databases.
Answer questions accurately based on the provided context.
If you cannot answer based on the context, say so clearly.`

const ragQATemplate = `Context information is below:
---------------------
%s
---------------------

Given the context information above, please answer the following question.
If the context doesn't contain enough information to answer, say so clearly.

Question: %s

Answer:`

const conversationTemplate = `Previous conversation:
%s

Retrieved context:
%s

User: %s`

// QAPrompt embeds the formatted retrieval context and the question into the
// single-turn question-answering template.
func QAPrompt(context, question string) string {
	return fmt.Sprintf(ragQATemplate, context, question)
}

// ConversationPrompt additionally folds the rendered conversation history in
// front of the context.
func ConversationPrompt(history, context, question string) string {
	return fmt.Sprintf(conversationTemplate, history, context, question)
}
