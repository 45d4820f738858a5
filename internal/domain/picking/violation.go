package picking

import "fmt"

// ViolationKind tipo de violación de estrategia.
type ViolationKind string

// Tipos de violación.
const (
	ViolationFIFO ViolationKind = "fifo_violation"
	ViolationFEFO ViolationKind = "fefo_violation"
)

// Violation resultado de comparar la LP elegida contra la sugerida. Es sólo informativo:
// nunca bloquea la operación, el flujo que llama decide si advertir al operador.
type Violation struct {
	Violated bool
	Kind     ViolationKind
	Message  string
}

// CheckViolation compara la LP seleccionada con la sugerida por la estrategia activa.
func CheckViolation(selectedLPID, suggestedLPID string, strategy Strategy) Violation {
	if selectedLPID == suggestedLPID || strategy == StrategyNone || strategy == "" {
		return Violation{}
	}
	kind := ViolationFIFO
	rule := "FIFO: se sugiere el inventario más antiguo"
	if strategy == StrategyFEFO {
		kind = ViolationFEFO
		rule = "FEFO: se sugiere la LP con vencimiento más próximo"
	}
	return Violation{
		Violated: true,
		Kind:     kind,
		Message:  fmt.Sprintf("LP %s seleccionada en lugar de la sugerida %s (%s)", selectedLPID, suggestedLPID, rule),
	}
}
