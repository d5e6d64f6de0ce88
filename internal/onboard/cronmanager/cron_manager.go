// Пакет для управления периодическими задачами сервиса онбординга.
//
// Основные возможности:
//   - Реестр именованных задач с cron-расписанием.
//   - Запуск и корректная остановка диспетчера.
//   - Восстановление после паники внутри задачи.
package cronmanager

import (
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

type CronJobFunc func()

type Job struct {
	Func     CronJobFunc
	Schedule string
}

type JobRegistry map[string]Job

type CronManager struct {
	dispatcher *cron.Cron
	jobs       map[string]cron.EntryID
	mu         sync.Mutex
	registry   JobRegistry
}

// NewCronManager создает диспетчер задач по реестру.
func NewCronManager(registry JobRegistry) *CronManager {
	return &CronManager{
		dispatcher: cron.New(
			cron.WithChain(cron.Recover(cron.DefaultLogger)),
		),
		jobs:     make(map[string]cron.EntryID),
		registry: registry,
	}
}

// LoadJobs перечитывает реестр и пересобирает расписание.
func (cm *CronManager) LoadJobs() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for name, entryID := range cm.jobs {
		cm.dispatcher.Remove(entryID)
		delete(cm.jobs, name)
	}

	for name, job := range cm.registry {
		id, err := cm.dispatcher.AddFunc(job.Schedule, job.Func)
		if err != nil {
			slog.Error("Error adding job", "name", name, "err", err)
			return err
		}
		cm.jobs[name] = id
	}
	return nil
}

// RemoveJob снимает задачу с расписания по имени.
func (cm *CronManager) RemoveJob(name string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if entryID, exists := cm.jobs[name]; exists {
		cm.dispatcher.Remove(entryID)
		delete(cm.jobs, name)
	}
}

func (cm *CronManager) Start() {
	cm.dispatcher.Start()
}

// Stop останавливает диспетчер, дождавшись завершения выполняющихся задач.
func (cm *CronManager) Stop() {
	ctx := cm.dispatcher.Stop()
	<-ctx.Done()
}
