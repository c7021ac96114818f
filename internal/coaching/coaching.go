// Package coaching turns a batch's averages into one concrete feedback
// card for the evaluated operator: the weakest rubric section, what to
// do about it, and what improves if they do.
package coaching

import (
	"fmt"

	"chat-quality-go/internal/rubric"
	"chat-quality-go/internal/scores"
)

// Card is a single actionable recommendation.
type Card struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

// attention is the compliance ratio below which a section is flagged.
const attention = 0.7

var actions = map[string]Card{
	"scripts": {
		Action: "Repasar los scripts de saludo y despedida con ejemplos de chats reales",
		Impact: "Primera y última impresión consistentes en cada atención",
	},
	"protocolo": {
		Action: "Practicar el flujo completo de pedido: validación de datos, confirmación y link de pago",
		Impact: "Menos pedidos incompletos y menos reprocesos",
	},
	"calidad": {
		Action: "Sesión de acompañamiento enfocada en empatía, fluidez y redacción",
		Impact: "Mejor experiencia del cliente y menos escalamientos",
	},
	"registro": {
		Action: "Recordar el cierre administrativo: confirmar datos y etiquetar cada diálogo",
		Impact: "Trazabilidad completa de las gestiones",
	},
}

// Generate picks the section with the lowest compliance ratio. When
// every section clears the attention threshold the card says so instead
// of inventing a weakness.
func Generate(rb *rubric.Rubric, avg scores.Averages) Card {
	worstKey := ""
	worstRatio := 1.0
	for _, s := range rb.Sections {
		got, ok := avg.Sections[s.Key]
		if !ok || s.Max <= 0 {
			continue
		}
		ratio := got / s.Max
		if ratio < worstRatio {
			worstRatio = ratio
			worstKey = s.Key
		}
	}

	if worstKey == "" || worstRatio >= attention {
		return Card{
			Insight: "Sin áreas críticas en esta muestra",
			Action:  "Mantener el acompañamiento regular",
			Impact:  "Sostener el nivel de calidad actual",
		}
	}

	section, _ := rb.Section(worstKey)
	card := actions[worstKey]
	card.Insight = fmt.Sprintf("%s: %.1f de %s puntos en promedio (%.0f%%)",
		section.Label, avg.Sections[worstKey], trimFloat(section.Max), worstRatio*100)
	if card.Action == "" {
		card.Action = "Revisar los criterios de la sección con el operador"
		card.Impact = "Cerrar la brecha detectada en la muestra"
	}
	return card
}

func trimFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
