package extractor

const systemPrompt = `You extract structured complaint information from a conversation between a user and a complaint-intake assistant.

Rules:
1. Consider the FULL conversation; later turns may correct or add to earlier ones.
2. Extract a location even when it is embedded in a sentence (e.g. "theft at the lobby" -> location: "lobby").
3. Extract a time reference even when embedded (e.g. "happened at 4:00 pm" -> datetime: "4:00 PM"). Keep it as the user phrased it; do not convert to a calendar date.
4. Use exactly "Not specified" for any field the conversation does not mention.
5. severity is one of Low, Medium, High, Critical. Use Medium when unclear.
6. Return ONLY a valid JSON object, no markdown fences or other text.`

const extractionUserPrompt = `Extract the complaint information from this conversation:

---
%s
---

Respond with valid JSON matching this schema:
{
  "description": "brief description of what happened",
  "location": "specific place or area, or Not specified",
  "datetime": "when it happened as phrased by the user, or Not specified",
  "severity": "Low|Medium|High|Critical",
  "details": "key details about the complaint"
}`
