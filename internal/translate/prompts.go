// Package translate implements the Translator/Summarizer: title
// translation, article summarization, and comment summarization, each
// with a single-item and a strict positional-mapping batched variant.
package translate

const (
	titleSystemPrompt = `You translate Hacker News story titles into natural, concise Chinese.
Keep programming-language names, well-known product and company names, and uppercase acronyms verbatim;
translate the surrounding natural-language text. Output only the translated title, nothing else.`

	articleSystemPrompt = `You summarize articles for a daily Hacker News digest in Chinese.
Write a clear, factual summary within the requested character limit, condensing even when the source
is already short. Do not add opinions or commentary. Output only the summary text, nothing else.`

	commentsSystemPrompt = `You summarize Hacker News comment threads in Chinese, targeting about 300 characters.
Preserve technical terms verbatim. Capture the dominant viewpoint and any clearly articulated
counterpoints with their key arguments. Include concrete numbers, libraries, or alternatives when the
comments mention them. Output only the summary text, nothing else.`
)
