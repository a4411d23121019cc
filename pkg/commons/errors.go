package commons

import "errors"

// ErrExternal indicates a Commons or PetScan request failure (transport,
// status, or unparseable body).
var ErrExternal = errors.New("external service error")
