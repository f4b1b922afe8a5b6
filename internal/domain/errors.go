package domain

import "errors"

// Taxonomía de errores del núcleo. Se envuelven con fmt.Errorf("...: %w", ErrX)
// y se comparan con errors.Is.
var (
	// ErrConflict: ya existe una encuesta para el usuario, o el rol ya está en el set.
	ErrConflict = errors.New("conflict")
	// ErrNotFound: encuesta, canal, mensaje o acumulador ausente.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput: deltas negativos, valores de config fuera de rango.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDisabled: el módulo (votación o narrador) está apagado.
	ErrDisabled = errors.New("module disabled")
)
