package mentorship

import "github.com/pittstate/pittstate-connect/internal/domain/shared"

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// Все ошибки жизненного цикла - восстановимые: они отклоняют одну операцию,
// а решение о повторе принимает вызывающая сторона.
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrAlreadyMatched - у менти уже есть активная пара.
	ErrAlreadyMatched = shared.NewDomainError("mentorship", "RequestMatch", shared.ErrConflict, "mentee already has an active mentorship")

	// ErrMentorUnavailable - ментор неактивен или достиг лимита менти.
	ErrMentorUnavailable = shared.NewDomainError("mentorship", "ReserveSlot", shared.ErrConflict, "mentor is inactive or at capacity")

	// ErrNotAuthorized - актор не является участником пары.
	ErrNotAuthorized = shared.NewDomainError("mentorship", "Authorize", shared.ErrForbidden, "actor is not allowed to perform this action")

	// ErrInvalidState - операция недопустима в текущем состоянии.
	ErrInvalidState = shared.NewDomainError("mentorship", "Transition", shared.ErrStateTransition, "operation not allowed in current state")

	// ErrDuplicateRequest - запрос этому ментору уже ожидает ответа.
	ErrDuplicateRequest = shared.NewDomainError("mentorship", "RequestMatch", shared.ErrAlreadyExists, "a pending request to this mentor already exists")

	// ErrSelfMatch - нельзя выбрать себя ментором.
	ErrSelfMatch = shared.NewDomainError("mentorship", "RequestMatch", shared.ErrInvalidInput, "cannot request yourself as a mentor")

	// ErrMenteeInactive - профиль менти деактивирован.
	ErrMenteeInactive = shared.NewDomainError("mentorship", "RequestMatch", shared.ErrInvalidState, "mentee profile is not active")
)

// Lookup errors
var (
	ErrMentorNotFound  = shared.NewDomainError("mentorship", "FindMentor", shared.ErrNotFound, "mentor profile not found")
	ErrMenteeNotFound  = shared.NewDomainError("mentorship", "FindMentee", shared.ErrNotFound, "mentee profile not found")
	ErrMatchNotFound   = shared.NewDomainError("mentorship", "FindMatch", shared.ErrNotFound, "mentorship not found")
	ErrSessionNotFound = shared.NewDomainError("mentorship", "FindSession", shared.ErrNotFound, "session not found")
)

// validationError builds a validation error for the given operation.
func validationError(op, message string) error {
	return shared.NewDomainError("mentorship", op, shared.ErrValidation, message)
}
