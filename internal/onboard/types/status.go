package types

// SubmissionStatus статус заявки поставщика.
type SubmissionStatus string

const (
	StatusDraft           SubmissionStatus = "draft"
	StatusSubmitted       SubmissionStatus = "submitted"
	StatusInReview        SubmissionStatus = "in_review"
	StatusPendingSupplier SubmissionStatus = "pending_supplier"
	StatusApproved        SubmissionStatus = "approved"
	StatusRejected        SubmissionStatus = "rejected"
)

// transitions таблица допустимых переходов статусов. Терминальные статусы
// (approved, rejected) исходящих переходов не имеют.
var transitions = map[SubmissionStatus][]SubmissionStatus{
	StatusDraft:           {StatusSubmitted},
	StatusSubmitted:       {StatusInReview},
	StatusInReview:        {StatusPendingSupplier, StatusApproved, StatusRejected},
	StatusPendingSupplier: {StatusInReview},
	StatusApproved:        {},
	StatusRejected:        {},
}

func (s SubmissionStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s SubmissionStatus) CanTransitionTo(target SubmissionStatus) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s SubmissionStatus) Terminal() bool {
	return len(transitions[s]) == 0 && s.Valid()
}

// Editable редактирование данных заявки допустимо только в статусах
// draft и pending_supplier.
func (s SubmissionStatus) Editable() bool {
	return s == StatusDraft || s == StatusPendingSupplier
}

// Role роль субъекта токена доступа. Поставщики работают со своими
// черновиками и заявками, проверяющие ведут процесс рассмотрения,
// администраторы управляют определениями анкет и справочниками.
type Role string

const (
	RoleSupplier Role = "supplier"
	RoleReviewer Role = "reviewer"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleSupplier || r == RoleReviewer || r == RoleAdmin
}

// ActiveStatuses статусы, при которых заявка считается активной: на пару
// (организация, определение формы) допускается не более одной активной заявки.
var ActiveStatuses = []SubmissionStatus{
	StatusDraft,
	StatusSubmitted,
	StatusInReview,
	StatusPendingSupplier,
	StatusApproved,
}
