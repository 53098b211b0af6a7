package public

import (
	"github.com/ardanlabs/powledger/business/web/errs"
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// payloadSubmit is the request for adding a payload to the mempool.
type payloadSubmit struct {
	Payload string `json:"payload" validate:"required"`
}

// Validate checks the data in the model is considered clean.
func (ps payloadSubmit) Validate() error {
	return errs.Check(ps)
}

type payloadAccepted struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// rejection describes the first block that failed validation.
type rejection struct {
	Reason string `json:"reason"`
	Number uint64 `json:"number"`
	Index  int    `json:"index"`
	Got    string `json:"got"`
	Exp    string `json:"exp"`
}

type chainValidation struct {
	Valid     bool       `json:"valid"`
	Blocks    int        `json:"blocks"`
	Rejection *rejection `json:"rejection,omitempty"`
}

func toChainValidation(blocks []database.Block, err error) chainValidation {
	cv := chainValidation{
		Valid:  err == nil,
		Blocks: len(blocks),
	}

	if re := database.GetReject(err); re != nil {
		cv.Rejection = &rejection{
			Reason: re.Reason.String(),
			Number: re.Number,
			Index:  re.Index,
			Got:    re.Got,
			Exp:    re.Exp,
		}
	}

	return cv
}
