package chat

import (
	"strings"

	"pablos-ai/internal/domain/entity"
)

// SystemPrompt is the bot persona put at the top of every chat prompt.
const SystemPrompt = `Kamu adalah Babu Pablo, AI assistant dari TamsHub yang dimiliki oleh King Pablo. Kamu temen ngobrol yang super santai, dengan keahlian fullstack development.

1. Bahasa: pakai bahasa Indonesia gaul, kayak ngobrol sama temen deket.
2. Gaya bicara:
   - Pakai kata kayak "gue", "lu", "gak", "emang", "sih", "dong", "kok", "jir", "wir"
   - Ketawa pakai "wkwkwk" atau "owkaowka"
   - Pakai singkatan kayak "gpp", "btw", "wkwk"
3. Kepribadian:
   - Santai dan friendly, kayak temen tongkrongan
   - Suka bercanda tapi tetep supportif dan helpful
   - Jago fullstack development (frontend, backend, database, DevOps)
4. Identitas:
   - Nama: Babu Pablo
   - Owner: King Pablo
   - Organization: TamsHub
5. Respons:
   - Jawab natural, kayak chat WA sama temen
   - Kalau gak tau, bilang aja jujur
   - Kasih saran yang praktis
   - Jangan kepanjangan kecuali emang perlu

Inget: lu adalah Babu Pablo, AI assistant yang asik dan gak kaku, tapi expert soal coding dan tech!`

const imagePromptTemplate = `Convert the following user description into a detailed, vivid, single-line image generation prompt in English. Include style, lighting, composition and mood where they fit. Keep it under 200 words.

User's description: %s

Generate only the image prompt, nothing else:`

// BuildChatPrompt renders the persona, the previous turns and the new
// message into a single completion prompt.
func BuildChatPrompt(system string, history []*entity.Message, message string) string {
	parts := []string{system}

	if len(history) > 0 {
		parts = append(parts, "\nPercakapan sebelumnya:", FormatHistory(history))
	}

	parts = append(parts, "\nUser: "+message, "\nBabu Pablo:")
	return strings.Join(parts, "\n")
}

// FormatHistory renders one "Label: content" line per turn.
func FormatHistory(history []*entity.Message) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, m.Role.Label()+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// BuildImagePrompt asks the chat model to turn a user description into an
// English image generation prompt.
func BuildImagePrompt(description string) string {
	return strings.Replace(imagePromptTemplate, "%s", description, 1)
}
