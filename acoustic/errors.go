package acoustic

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is returned when a class has no training sequences.
	ErrInsufficientData = errors.New("acoustic: insufficient data")

	// ErrEmptySequence is returned when a sequence has no symbols.
	ErrEmptySequence = errors.New("acoustic: empty sequence")
)

// ErrSymbolOutOfRange reports a symbol outside the model alphabet.
type ErrSymbolOutOfRange struct {
	Symbol     int
	Position   int
	NumSymbols int
}

func (e *ErrSymbolOutOfRange) Error() string {
	return fmt.Sprintf("acoustic: symbol %d at position %d outside alphabet [0,%d)", e.Symbol, e.Position, e.NumSymbols)
}

// ErrAlphabetMismatch reports a model whose alphabet size differs from the
// codebook it is paired with.
type ErrAlphabetMismatch struct {
	Model    int
	Codebook int
}

func (e *ErrAlphabetMismatch) Error() string {
	return fmt.Sprintf("acoustic: model alphabet %d does not match codebook size %d", e.Model, e.Codebook)
}
