package loyalty

import (
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
)

var ErrRegistry = errx.NewRegistry("LOYALTY")

var (
	CodeCardNotFound    = ErrRegistry.Register("CARD_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Stamp card not found")
	CodePrefilterFailed = ErrRegistry.Register("PREFILTER_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Loyalty prefilter failed")
)

func ErrCardNotFound() *errx.Error {
	return ErrRegistry.New(CodeCardNotFound)
}

func ErrPrefilterFailed() *errx.Error {
	return ErrRegistry.New(CodePrefilterFailed)
}
