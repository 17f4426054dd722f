package anthropic

const basePrompt = "You are a professional copywriter. Write in clear, natural English and return only the finished content with no preamble."

var toolPrompts = map[string]string{
	"blog_creator":        "Write a well-structured blog post with a title, short introduction, headed sections and a conclusion.",
	"email_generator":     "Write a concise email with a subject line, greeting, body and sign-off.",
	"social_media_post":   "Write a short, engaging social media post with a clear call to action and up to three relevant hashtags.",
	"seo_optimizer":       "Rewrite the provided text for search visibility. Keep the meaning, work in the stated keywords naturally and suggest a meta description.",
	"ad_copy":             "Write three variations of ad copy, each with a headline and a one-sentence description.",
	"product_description": "Write a persuasive product description that leads with benefits and ends with key specifications as a short list.",
}

// systemPrompt returns the instruction for a tool. Unknown tools get the
// base instruction only.
func systemPrompt(tool string) string {
	if p, ok := toolPrompts[tool]; ok {
		return basePrompt + "\n\n" + p
	}
	return basePrompt
}
