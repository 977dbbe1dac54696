package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// CodeUnavailable marks a tenant whose database cannot be reached.
	CodeUnavailable Code = "SERVICE_UNAVAILABLE"
	// CodeGateway marks a failed or timed out payment gateway call.
	CodeGateway Code = "GATEWAY_ERROR"
	// CodeInconsistentWebhook marks a webhook that cannot be acted upon. It is acknowledged, never retried.
	CodeInconsistentWebhook Code = "INCONSISTENT_WEBHOOK"
)

// Metadata is how a code surfaces over HTTP. PublicMessage is shown to
// customers when the error's own message is not safe to expose.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:          {HTTPStatus: http.StatusBadRequest, PublicMessage: "Dados inválidos.", DetailsAllowed: true},
	CodeUnauthorized:        {HTTPStatus: http.StatusUnauthorized, PublicMessage: "Autenticação necessária."},
	CodeForbidden:           {HTTPStatus: http.StatusForbidden, PublicMessage: "Acesso negado."},
	CodeNotFound:            {HTTPStatus: http.StatusNotFound, PublicMessage: "Não encontrado."},
	CodeConflict:            {HTTPStatus: http.StatusConflict, PublicMessage: "Conflito com o estado atual."},
	CodeStateConflict:       {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "Esta ação não é permitida para o pedido.", DetailsAllowed: true},
	CodeIdempotency:         {HTTPStatus: http.StatusConflict, PublicMessage: "Chave de idempotência reutilizada.", DetailsAllowed: true},
	CodeRateLimit:           {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "Muitas tentativas. Aguarde um instante."},
	CodeInternal:            {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "Erro interno. Tente novamente."},
	CodeDependency:          {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "Serviço indisponível no momento.", DetailsAllowed: true},
	CodeUnavailable:         {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "Restaurante temporariamente indisponível."},
	CodeGateway:             {HTTPStatus: http.StatusBadGateway, PublicMessage: "Falha ao comunicar com o meio de pagamento."},
	CodeInconsistentWebhook: {HTTPStatus: http.StatusOK, PublicMessage: "notification ignored"},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// Retryable reports whether the caller may retry the failed operation as is.
func Retryable(err error) bool {
	typed := As(err)
	if typed == nil {
		return true
	}
	return MetadataFor(typed.Code()).Retryable
}
