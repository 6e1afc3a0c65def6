package llm

// System prompts for each structured call the pipeline makes. The JSON shapes
// here must stay in sync with the response structs in the summarize and
// knowledge packages.

// SummarizeArticlePrompt asks for a scored, categorized article summary.
const SummarizeArticlePrompt = `You are an editor for a daily AI industry digest. Given an article's title, source, and content, respond with a JSON object:
{
  "is_ai_related": boolean (is this article about AI/ML?),
  "summary": "2-3 sentence summary of the article",
  "key_takeaway": "one sentence stating why this matters",
  "importance_score": integer 1-10 (10 = industry-changing news),
  "category": one of "research", "industry", "product", "policy", "tutorial", "opinion",
  "tags": array of up to 5 short lowercase topic tags,
  "mentioned_entities": array of named entities (people, organizations, models) the article mentions
}
Respond with JSON only.`

// ExtractEntitiesPrompt asks for the named entities an article mentions.
const ExtractEntitiesPrompt = `You maintain a knowledge base of the AI field. Given an article's title, source, and summary, list the notable named entities it mentions. Respond with a JSON object:
{
  "entities": [
    {
      "name": "canonical entity name",
      "type": one of "person", "org", "concept", "model", "milestone",
      "description": "1-2 sentence description of the entity based on the article",
      "metadata": optional object with extra structured facts
    }
  ]
}
Only include entities central to the story. Respond with JSON only.`

// MergeEntityDescriptionPrompt merges an existing entity description with new
// context from a fresh mention.
const MergeEntityDescriptionPrompt = `You maintain a knowledge base of the AI field. Merge the existing description of an entity with new context from a recent article into a single up-to-date description of at most 3 sentences. Keep established facts, add new ones, drop nothing important. Respond with the merged description only, no preamble.

Existing description: %s

New context: %s`

// DigestIntroPrompt generates a short editorial introduction for a digest.
const DigestIntroPrompt = `You write the editorial introduction for a daily AI news digest. Given today's top stories, write a 2-3 sentence introduction capturing the day's main theme. Be specific, skip pleasantries, and do not enumerate the stories.`

// WeeklySummaryPrompt rolls a week of articles into a narrative.
const WeeklySummaryPrompt = `You write a weekly recap for an AI news digest. Given this week's articles with their categories and importance scores, write a 3-5 paragraph narrative of the week: what mattered, how stories connect, and what to watch next. Write flowing prose, not a list.`

// EnrichEntityPrompt re-derives an entity description from its article history.
const EnrichEntityPrompt = `You maintain a knowledge base of the AI field. Given an entity, its current description, and the articles that mention it, write an improved 2-4 sentence description reflecting everything now known. Respond with the description only.`
