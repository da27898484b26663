package repository

import (
	"errors"

	"github.com/okian/botscope/internal/domain/model"
)

// Sentinel kinds for graph store errors.
var (
	ErrNotFound           = model.ErrNotFound
	ErrUnsupportedBackend = errors.New("unsupported graph backend")
)
