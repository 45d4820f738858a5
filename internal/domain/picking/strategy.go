// Package picking contiene las reglas puras de selección de LPs: estrategia FIFO/FEFO,
// orden de candidatas, violaciones de estrategia y cobertura de reservas.
package picking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jhoicas/lp-engine/internal/domain"
	"github.com/jhoicas/lp-engine/internal/domain/entity"
)

// Strategy estrategia de picking derivada de la configuración de la bodega.
type Strategy string

// Estrategias soportadas.
const (
	StrategyFIFO Strategy = "fifo"
	StrategyFEFO Strategy = "fefo"
	StrategyNone Strategy = "none"
)

// ResolveStrategy FEFO tiene precedencia sobre FIFO; sin ninguna habilitada no hay orden implícito.
func ResolveStrategy(settings entity.WarehouseSettings) Strategy {
	switch {
	case settings.EnableFEFO:
		return StrategyFEFO
	case settings.EnableFIFO:
		return StrategyFIFO
	default:
		return StrategyNone
	}
}

// ParseStrategy convierte un string (sin distinguir mayúsculas) en Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyFIFO:
		return StrategyFIFO, nil
	case StrategyFEFO:
		return StrategyFEFO, nil
	case StrategyNone:
		return StrategyNone, nil
	}
	return "", fmt.Errorf("%w: estrategia %q no soportada", domain.ErrInvalidInput, s)
}

func (s Strategy) String() string { return string(s) }

// Less compara dos LPs según la estrategia. Para StrategyNone ordena por ID sólo para que el
// resultado sea determinista; no es parte del contrato.
//
//	fifo: created_at ASC, id ASC
//	fefo: expiry_date ASC (NULL al final), created_at ASC, id ASC
func (s Strategy) Less(a, b *entity.LicensePlate) bool {
	if s == StrategyFEFO {
		switch {
		case a.ExpiryDate == nil && b.ExpiryDate != nil:
			return false
		case a.ExpiryDate != nil && b.ExpiryDate == nil:
			return true
		case a.ExpiryDate != nil && b.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
	}
	if s == StrategyFIFO || s == StrategyFEFO {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	return a.ID < b.ID
}

// SortLicensePlates ordena lps in-place según la estrategia.
func SortLicensePlates(lps []*entity.LicensePlate, s Strategy) {
	sort.SliceStable(lps, func(i, j int) bool { return s.Less(lps[i], lps[j]) })
}
