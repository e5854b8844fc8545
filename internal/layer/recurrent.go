package layer

import (
	"fmt"
	"strings"
)

// Recurrent cell kinds.
const (
	KindLSTM = "lstm"
	KindGRU  = "gru"
)

// ParseKind normalizes a recurrent cell name. Matching is case-insensitive.
func ParseKind(s string) (string, error) {
	switch k := strings.ToLower(strings.TrimSpace(s)); k {
	case KindLSTM, KindGRU:
		return k, nil
	}
	return "", fmt.Errorf("unknown rnn type %q (want %s or %s)", s, KindLSTM, KindGRU)
}

// NewRecurrent creates a recurrent layer of the given kind.
func NewRecurrent(kind string, inSize, units int, rng *RNG) (Recurrent, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return nil, err
	}
	if k == KindGRU {
		return NewGRU(inSize, units, rng), nil
	}
	return NewLSTM(inSize, units, rng), nil
}

// KindOf reports the cell kind of a recurrent layer.
func KindOf(r Recurrent) string {
	switch r.(type) {
	case *GRU:
		return KindGRU
	case *LSTM:
		return KindLSTM
	}
	return ""
}
