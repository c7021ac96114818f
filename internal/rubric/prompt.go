package rubric

import (
	"fmt"
	"strconv"
	"strings"
)

// BuildPrompt renders the rubric and a chat transcript into the scoring
// oracle's instruction. The JSON skeleton is generated from the rubric
// keys so the oracle's output always lines up with the active revision.
func (r *Rubric) BuildPrompt(transcript string) string {
	var b strings.Builder

	b.WriteString("Eres un evaluador de calidad de atención al cliente. Analiza el siguiente chat entre un agente y un cliente.\n\n")
	b.WriteString("RÚBRICA DE EVALUACIÓN:\n\n")

	for i, s := range r.Sections {
		fmt.Fprintf(&b, "%d. %s (Máximo %s puntos)\n", i+1, strings.ToUpper(s.Label), trimFloat(s.Max))
		for j, c := range s.Criteria {
			fmt.Fprintf(&b, "   - %d.%d %s (%s pts)\n", i+1, j+1, c.Label, trimFloat(c.Max))
		}
		b.WriteString("\n")
	}

	b.WriteString(`INSTRUCCIONES:
- Evalúa SOLO lo que puedes observar en el chat
- Si un criterio no aplica o no hay evidencia, asigna el puntaje completo
- Si no puedes juzgar un criterio, usa null para que sea revisado manualmente
- Sé objetivo y consistente

RESPONDE EN FORMATO JSON EXACTO:
`)
	b.WriteString(r.responseSkeleton())
	b.WriteString("\nCHAT A EVALUAR:\n")
	b.WriteString(transcript)
	return b.String()
}

func (r *Rubric) responseSkeleton() string {
	var b strings.Builder
	b.WriteString("{\n")
	for _, s := range r.Sections {
		fmt.Fprintf(&b, "  %q: {\n", s.Key)
		for _, c := range s.Criteria {
			fmt.Fprintf(&b, "    %q: <0-%s>,\n", c.Key, trimFloat(c.Max))
		}
		fmt.Fprintf(&b, "    \"total\": <0-%s>\n  },\n", trimFloat(s.Max))
	}
	b.WriteString("  \"promedio_final\": <suma de totales>,\n")
	b.WriteString("  \"observaciones\": \"<máximo 2 sugerencias de mejora importantes>\"\n")
	b.WriteString("}\n")
	return b.String()
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
