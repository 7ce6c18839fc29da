package ollama

import (
	"fmt"
	"unicode/utf8"
)

const maxPromptRunes = 4000

func clip(text string) string {
	if utf8.RuneCountInString(text) <= maxPromptRunes {
		return text
	}
	return string([]rune(text)[:maxPromptRunes])
}

func buildSummaryPrompt(text string) string {
	return `Resume en una o dos frases, en español, lo que relata el paciente.
Responde solo con el resumen, sin comillas ni explicaciones.

Relato:
` + clip(text)
}

func buildTranslationPrompt(text, targetLang string) string {
	return fmt.Sprintf(`Translate the following patient text into language %q.
Return only the translation, no notes.

Text:
%s`, targetLang, clip(text))
}

func buildEntitiesPrompt(text string) string {
	return `Extrae las entidades clínicas del relato del paciente.
Devuelve un objeto JSON estricto: {"entities":[{"text":"...","label":"..."}]}.
label debe ser uno de: SYMPTOM, ANATOMY, DURATION, MEDICATION, CONDITION, OTHER.
text debe aparecer literalmente en el relato. Sin markdown ni claves extra.

Relato:
` + clip(text)
}

func buildSentimentPrompt(text string) string {
	return `Clasifica el sentimiento del relato del paciente.
Devuelve un objeto JSON estricto: {"label":"POS"|"NEG"|"NEU","score":número entre 0 y 1}.
Sin markdown ni claves extra.

Relato:
` + clip(text)
}

func buildDiagnosisPrompt(text string) string {
	return `Eres un asistente clínico. Propón el diagnóstico más probable para el relato,
como una frase nominal corta en español (por ejemplo "cistitis").
Devuelve un objeto JSON estricto: {"diagnosis":"..."}; usa "" si no hay información suficiente.

Relato:
` + clip(text)
}
