// Пакет предоставляет функциональность для отправки email-уведомлений команде закупок о событиях жизненного цикла заявок поставщиков.  Письма ставятся в очередь и отправляются пулом воркеров; сбой отправки логируется и не влияет на основную операцию.
//
// Основные возможности:
//   - Уведомление о поступлении новой заявки на проверку.
//   - Уведомление о смене статуса заявки.
//   - Пул воркеров с корректной остановкой.
package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/config"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/dao"
	"gopkg.in/gomail.v2"
)

var submittedTmpl = template.Must(template.New("submitted").Parse(
	`<p>Поступила новая заявка поставщика по анкете <strong>{{.FormTitle}}</strong>.</p><p>Номер заявки: {{.SubmissionId}}</p>{{if .Url}}<p><a href="{{.Url}}">Открыть анкету</a></p>{{end}}`))

var transitionTmpl = template.Must(template.New("transition").Parse(
	`<p>Заявка {{.SubmissionId}} по анкете <strong>{{.FormTitle}}</strong> переведена из статуса <strong>{{.OldStatus}}</strong> в <strong>{{.NewStatus}}</strong>.</p>`))

type EmailService struct {
	d        *gomail.Dialer
	cfg      *config.Config
	disabled bool

	emailChan chan mail
	eg        errgroup.Group
}

type mail struct {
	To          string
	Subject     string
	Content     string
	TextContent string
}

func NewEmailService(cfg *config.Config) *EmailService {
	es := &EmailService{
		d:         gomail.NewDialer(cfg.EmailHost, cfg.EmailPort, cfg.EmailUser, cfg.EmailPassword),
		cfg:       cfg,
		disabled:  cfg.EmailDisabled || cfg.EmailReviewInbox == "",
		emailChan: make(chan mail),
	}
	if es.disabled {
		slog.Warn("Email notifications disabled")
		return es
	}

	for i := 0; i < cfg.EmailWorkers; i++ {
		es.eg.Go(func() error {
			return es.worker(es.emailChan)
		})
	}
	return es
}

func (es *EmailService) Stop() {
	if es.disabled {
		return
	}
	slog.Info("Closing email workers")
	es.disabled = true
	close(es.emailChan)

	if err := es.eg.Wait(); err != nil {
		slog.Error("Email worker stop", "err", err)
	}
}

func (es *EmailService) sendEmail(e mail) error {
	m := gomail.NewMessage()
	m.SetHeader("From", es.cfg.EmailFrom)
	m.SetHeader("To", e.To)
	m.SetHeader("Subject", e.Subject)
	m.SetBody("text/plain", e.TextContent)
	m.AddAlternative("text/html", e.Content)

	return es.d.DialAndSend(m)
}

func (es *EmailService) send(e mail) {
	if es.disabled {
		return
	}
	es.emailChan <- e
}

func (es *EmailService) worker(emailChan <-chan mail) error {
	for e := range emailChan {
		if err := es.sendEmail(e); err != nil {
			slog.Error("Email send", "to", e.To, "err", err)
		}
	}
	return nil
}

// SubmissionSubmitted уведомляет команду закупок о новой заявке.
func (es *EmailService) SubmissionSubmitted(submission *dao.Submission) {
	if es.disabled || submission == nil {
		return
	}

	formTitle := ""
	url := ""
	if submission.FormDefinition != nil {
		formTitle = submission.FormDefinition.Title
		if submission.FormDefinition.URL != nil {
			url = submission.FormDefinition.URL.String()
		}
	}

	var buf bytes.Buffer
	if err := submittedTmpl.Execute(&buf, struct {
		FormTitle    string
		SubmissionId string
		Url          string
	}{formTitle, submission.ID.String(), url}); err != nil {
		slog.Error("Render submitted notification", "err", err)
		return
	}

	es.send(mail{
		To:          es.cfg.EmailReviewInbox,
		Subject:     fmt.Sprintf("Новая заявка поставщика: %s", formTitle),
		Content:     buf.String(),
		TextContent: fmt.Sprintf("Поступила новая заявка %s по анкете %s", submission.ID, formTitle),
	})
}

// SubmissionStatusChanged уведомляет команду закупок о переходе заявки между статусами.
func (es *EmailService) SubmissionStatusChanged(submission *dao.Submission, oldStatus string, newStatus string) {
	if es.disabled || submission == nil {
		return
	}

	formTitle := ""
	if submission.FormDefinition != nil {
		formTitle = submission.FormDefinition.Title
	}

	var buf bytes.Buffer
	if err := transitionTmpl.Execute(&buf, struct {
		SubmissionId string
		FormTitle    string
		OldStatus    string
		NewStatus    string
	}{submission.ID.String(), formTitle, oldStatus, newStatus}); err != nil {
		slog.Error("Render transition notification", "err", err)
		return
	}

	es.send(mail{
		To:          es.cfg.EmailReviewInbox,
		Subject:     fmt.Sprintf("Заявка %s: смена статуса на '%s'", submission.ID, newStatus),
		Content:     buf.String(),
		TextContent: fmt.Sprintf("Заявка %s переведена из %s в %s", submission.ID, oldStatus, newStatus),
	})
}
