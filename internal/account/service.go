package account

import "errors"

// Service implements the authorization core: registration classification,
// the login decision engine and the firm approval operations. All state
// lives in the Store; Service itself is safe for concurrent use.
type Service struct {
	store Store
}

// NewService constructs a Service backed by the given store.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("account store is required")
	}
	return &Service{store: store}, nil
}
