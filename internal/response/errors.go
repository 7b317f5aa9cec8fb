package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam / attempt ────────────────────────────────────────────────
	ErrExamNotAssigned    ErrCode = "EXAM_NOT_ASSIGNED"
	ErrExamExpired        ErrCode = "EXAM_EXPIRED"
	ErrNoAttemptsLeft     ErrCode = "MAX_ATTEMPTS_REACHED"
	ErrAttemptActive      ErrCode = "ATTEMPT_ALREADY_ACTIVE"
	ErrAttemptNotActive   ErrCode = "ATTEMPT_NOT_ACTIVE"
	ErrAttemptCompleted   ErrCode = "ATTEMPT_ALREADY_COMPLETED"
	ErrNoActiveAttempt    ErrCode = "NO_ACTIVE_ATTEMPT"
	ErrQuestionNotInExam  ErrCode = "QUESTION_NOT_IN_EXAM"
	ErrNothingToSave      ErrCode = "NOTHING_TO_SAVE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Se requiere un token de autenticación."
	case ErrTokenInvalid:
		return "El token de autenticación no es válido."
	case ErrTokenExpired:
		return "El token de autenticación ha expirado."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "La validación falló. Revisa los datos enviados."
	case ErrInvalidID:
		return "El formato del ID no es válido."
	case ErrInvalidPayload:
		return "El cuerpo de la solicitud no es válido."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Recurso no encontrado."
	case ErrConflict:
		return "El recurso ya existe."

	// ─── Exam / attempt ────────────────────────────────────────────────
	case ErrExamNotAssigned:
		return "No tienes este examen asignado."
	case ErrExamExpired:
		return "Este examen expiró y ya no puede ser respondido."
	case ErrNoAttemptsLeft:
		return "Ya completaste el número máximo de intentos permitidos para este examen."
	case ErrAttemptActive:
		return "Ya existe un intento en progreso para este examen."
	case ErrAttemptNotActive:
		return "El intento ya no está en progreso."
	case ErrAttemptCompleted:
		return "El intento ya fue calificado."
	case ErrNoActiveAttempt:
		return "No hay un intento activo para este examen."
	case ErrQuestionNotInExam:
		return "La pregunta no pertenece a este examen."
	case ErrNothingToSave:
		return "No hay respuestas para guardar."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Demasiadas solicitudes. Intenta de nuevo más tarde."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Ocurrió un error interno del servidor."
	default:
		return "Ocurrió un error inesperado."
	}
}
