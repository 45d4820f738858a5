package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")

	// ErrInvalidState: la LP no está disponible, no pasó QA o está vencida; o la reserva ya no está activa.
	ErrInvalidState = errors.New("estado inválido para la operación")
	// ErrOverReservation: la cantidad solicitada supera lo disponible en la LP.
	ErrOverReservation = errors.New("cantidad supera lo disponible en la LP")
	// ErrOverConsumption: el consumo supera lo pendiente de la reserva (reservado - consumido).
	ErrOverConsumption = errors.New("consumo supera lo reservado")
)
