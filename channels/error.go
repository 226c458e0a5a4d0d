package channels

import (
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
)

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("CHANNEL")

var (
	CodeChannelNotFound      = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Canal no encontrado")
	CodeChannelAlreadyExists = ErrRegistry.Register("ALREADY_EXISTS", errx.TypeConflict, http.StatusConflict, "Canal ya existe")
	CodeInvalidChannelConfig = ErrRegistry.Register("INVALID_CONFIG", errx.TypeValidation, http.StatusBadRequest, "Configuración de canal inválida")
	CodeChannelInactive      = ErrRegistry.Register("CHANNEL_INACTIVE", errx.TypeBusiness, http.StatusForbidden, "Canal está inactivo")

	// Message sending errors
	CodeMessageSendFailed = ErrRegistry.Register("MESSAGE_SEND_FAILED", errx.TypeExternal, http.StatusBadGateway, "Envío de mensaje falló")
	CodeProviderAPIError  = ErrRegistry.Register("PROVIDER_API_ERROR", errx.TypeExternal, http.StatusBadGateway, "Error en API del proveedor")

	// Webhook errors
	CodeInvalidWebhookSignature = ErrRegistry.Register("INVALID_WEBHOOK_SIGNATURE", errx.TypeValidation, http.StatusUnauthorized, "Firma de webhook inválida")
	CodeWebhookVerifyFailed     = ErrRegistry.Register("WEBHOOK_VERIFY_FAILED", errx.TypeValidation, http.StatusForbidden, "Verificación de webhook falló")

	// Media errors
	CodeMediaFetchFailed = ErrRegistry.Register("MEDIA_FETCH_FAILED", errx.TypeExternal, http.StatusBadGateway, "Descarga de media falló")
)

// ============================================================================
// Error Constructor Functions
// ============================================================================

func ErrChannelNotFound() *errx.Error {
	return ErrRegistry.New(CodeChannelNotFound)
}

func ErrChannelAlreadyExists() *errx.Error {
	return ErrRegistry.New(CodeChannelAlreadyExists)
}

func ErrInvalidChannelConfig() *errx.Error {
	return ErrRegistry.New(CodeInvalidChannelConfig)
}

func ErrChannelInactive() *errx.Error {
	return ErrRegistry.New(CodeChannelInactive)
}

func ErrMessageSendFailed() *errx.Error {
	return ErrRegistry.New(CodeMessageSendFailed)
}

func ErrProviderAPIError() *errx.Error {
	return ErrRegistry.New(CodeProviderAPIError)
}

func ErrInvalidWebhookSignature() *errx.Error {
	return ErrRegistry.New(CodeInvalidWebhookSignature)
}

func ErrWebhookVerifyFailed() *errx.Error {
	return ErrRegistry.New(CodeWebhookVerifyFailed)
}

func ErrMediaFetchFailed() *errx.Error {
	return ErrRegistry.New(CodeMediaFetchFailed)
}
