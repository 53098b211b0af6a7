package private

import "github.com/ardanlabs/powledger/business/web/errs"

// payloadSubmit is the request a peer sends to share a payload.
type payloadSubmit struct {
	Payload string `json:"payload" validate:"required"`
}

// Validate checks the data in the model is considered clean.
func (ps payloadSubmit) Validate() error {
	return errs.Check(ps)
}
