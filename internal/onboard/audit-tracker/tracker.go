// Пакет tracker ведет журнал аудита административных и жизненных действий над заявками.  Записи принимаются безадресно (fire-and-forget) через канал и пишутся в базу фоновой горутиной; сбой записи журнала никогда не ломает основную операцию.
package tracker

import (
	"log/slog"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/dao"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const queueSize = 256

type AuditTracker struct {
	db      *gorm.DB
	records chan dao.AuditRecord
	done    chan struct{}
}

func NewAuditTracker(db *gorm.DB) *AuditTracker {
	t := AuditTracker{
		db:      db,
		records: make(chan dao.AuditRecord, queueSize),
		done:    make(chan struct{}),
	}
	go t.loop()
	return &t
}

func (t *AuditTracker) loop() {
	defer close(t.done)
	for record := range t.records {
		if err := t.db.Create(&record).Error; err != nil {
			slog.Error("Save audit record", "action", record.Action, "targetId", record.TargetId, "err", err)
		}
	}
}

// Track ставит запись в очередь журнала. Никогда не блокирует вызывающего:
// при переполненной очереди запись отбрасывается с диагностикой.
func (t *AuditTracker) Track(record dao.AuditRecord) {
	if record.ID.IsNil() {
		record.ID = dao.GenUUID()
	}
	select {
	case t.records <- record:
	default:
		slog.Warn("Audit queue full, dropping record", "action", record.Action)
	}
}

// StatusChanged фиксирует переход заявки между статусами.
func (t *AuditTracker) StatusChanged(submissionId uuid.UUID, actorId uuid.UUID, oldStatus string, newStatus string) {
	t.Track(dao.AuditRecord{
		TargetId: submissionId,
		ActorId:  actorId,
		Action:   "status_changed",
		OldValue: &oldStatus,
		NewValue: &newStatus,
	})
}

// SubmissionCreated фиксирует создание черновика заявки.
func (t *AuditTracker) SubmissionCreated(submissionId uuid.UUID, actorId uuid.UUID) {
	t.Track(dao.AuditRecord{
		TargetId: submissionId,
		ActorId:  actorId,
		Action:   "submission_created",
	})
}

// DefinitionPublished фиксирует публикацию определения анкеты.
func (t *AuditTracker) DefinitionPublished(formDefinitionId uuid.UUID, actorId uuid.UUID, version string) {
	t.Track(dao.AuditRecord{
		TargetId: formDefinitionId,
		ActorId:  actorId,
		Action:   "definition_published",
		NewValue: &version,
	})
}

// Close останавливает фоновую запись, дописав очередь до конца.
func (t *AuditTracker) Close() {
	close(t.records)
	<-t.done
}
