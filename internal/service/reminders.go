package service

import (
	"context"
	"fmt"
	"time"

	"payreminder/internal/models"
	"payreminder/internal/policy"

	"github.com/sirupsen/logrus"
)

// Job names accepted by the scheduler and the admin trigger endpoint.
const (
	JobMonthlyReminder = "monthly-reminder"
	JobOverdueNotice   = "overdue-notice"
)

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// ReminderStore is the slice of the database the reminder builders use.
type ReminderStore interface {
	ListDebtors(ctx context.Context, year, month int) ([]models.Debtor, error)
	EnqueueMessage(ctx context.Context, entry *models.QueueEntry) (int64, error)
}

// ReminderService turns the month's debtor list into queued messages. It
// only enqueues; the dispatcher owns delivery.
type ReminderService struct {
	store  ReminderStore
	delays *policy.DelayPolicy

	batchSize  int
	batchDelay time.Duration
	logger     *logrus.Logger
	now        func() time.Time
}

func NewReminderService(store ReminderStore, delays *policy.DelayPolicy,
	batchSize int, batchDelay time.Duration, logger *logrus.Logger) *ReminderService {
	return &ReminderService{
		store:      store,
		delays:     delays,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		logger:     logger,
		now:        time.Now,
	}
}

// BuildMonthlyReminders enqueues a friendly payment reminder for every
// client with a pending payment in the current period.
func (s *ReminderService) BuildMonthlyReminders(ctx context.Context) error {
	return s.build(ctx, "recordatorio", s.monthlyBody)
}

// BuildOverdueNotices enqueues a firmer notice for clients still pending
// mid-month.
func (s *ReminderService) BuildOverdueNotices(ctx context.Context) error {
	return s.build(ctx, "aviso_moroso", s.overdueBody)
}

func (s *ReminderService) build(ctx context.Context, template string,
	body func(debtor models.Debtor) string) error {
	now := s.now()
	year, month := now.Year(), int(now.Month())

	debtors, err := s.store.ListDebtors(ctx, year, month)
	if err != nil {
		return fmt.Errorf("failed to list debtors for %d-%02d: %w", year, month, err)
	}

	logger := s.logger.WithFields(logrus.Fields{
		"template": template,
		"period":   fmt.Sprintf("%d-%02d", year, month),
	})

	if len(debtors) == 0 {
		logger.Info("No pending debtors, nothing to enqueue")
		return nil
	}

	enqueued := 0
	for _, debtor := range debtors {
		clientID := debtor.ClientID
		tmpl := template
		entry := &models.QueueEntry{
			ClientID:    &clientID,
			Destination: debtor.Phone,
			Body:        body(debtor),
			Template:    &tmpl,
		}

		if _, err := s.store.EnqueueMessage(ctx, entry); err != nil {
			return fmt.Errorf("failed to enqueue %s for client %d: %w", template, debtor.ClientID, err)
		}
		enqueued++
	}

	minDelay, maxDelay := s.delays.DelayRange(0)
	logger.WithFields(logrus.Fields{
		"enqueued": enqueued,
		"estimate": policy.EstimateSendTime(enqueued, minDelay, maxDelay, s.batchSize, s.batchDelay),
	}).Info("Reminders enqueued")

	return nil
}

func (s *ReminderService) monthlyBody(debtor models.Debtor) string {
	return fmt.Sprintf(
		"¡%s, %s! 👋\n\n"+
			"Le recordamos que su pago de S/ %.2f correspondiente a %s %d se encuentra pendiente.\n\n"+
			"Puede realizar su pago por Yape, Plin o transferencia bancaria.\n\n"+
			"¡Gracias por su preferencia!",
		greeting(s.now().Hour()), debtor.Name, debtor.AmountDue,
		monthName(debtor.Month), debtor.Year)
}

func (s *ReminderService) overdueBody(debtor models.Debtor) string {
	return fmt.Sprintf(
		"%s, %s.\n\n"+
			"Le informamos que su cuenta registra %d pago(s) pendiente(s) por un total de S/ %.2f al mes de %s %d.\n\n"+
			"Para evitar la suspensión del servicio, le pedimos regularizar su pago a la brevedad.\n\n"+
			"Si ya realizó el pago, por favor ignore este mensaje.",
		greeting(s.now().Hour()), debtor.Name, debtor.PendingCount, debtor.AmountDue,
		monthName(debtor.Month), debtor.Year)
}

// greeting picks the Spanish salutation for the local hour.
func greeting(hour int) string {
	switch {
	case hour < 12:
		return "Buenos días"
	case hour < 19:
		return "Buenas tardes"
	default:
		return "Buenas noches"
	}
}

func monthName(month int) string {
	if month < 1 || month > 12 {
		return fmt.Sprintf("mes %d", month)
	}
	return spanishMonths[month-1]
}
