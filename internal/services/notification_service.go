package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/doucovani/backend/internal/config"
	"github.com/doucovani/backend/internal/models"
	"github.com/doucovani/backend/internal/repository"
	"github.com/doucovani/backend/pkg/rabbitmq"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Notification is the event consumed by the mail and SMS gateways.
type Notification struct {
	ID         uuid.UUID `json:"id"`
	Kind       string    `json:"kind"`
	Channel    Channel   `json:"channel"`
	Recipients []string  `json:"recipients"`
	Subject    string    `json:"subject,omitempty"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (n *Notification) RoutingKey() string {
	return "notification." + string(n.Channel)
}

type NotificationService struct {
	store     repository.Store
	publisher rabbitmq.Publisher
	cfg       config.NotificationConfig
	grace     time.Duration
	now       func() time.Time
}

func NewNotificationService(store repository.Store, publisher rabbitmq.Publisher, cfg *config.Config) *NotificationService {
	return &NotificationService{
		store:     store,
		publisher: publisher,
		cfg:       cfg.Notifications,
		grace:     cfg.PayLaterGrace,
		now:       time.Now,
	}
}

func (s *NotificationService) send(ctx context.Context, kind string, channel Channel, recipients []string, subject, body string) error {
	if len(recipients) == 0 {
		return nil
	}
	n := &Notification{
		ID:         uuid.New(),
		Kind:       kind,
		Channel:    channel,
		Recipients: recipients,
		Subject:    subject,
		Body:       body,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, s.cfg.Exchange, n.RoutingKey(), n); err != nil {
		log.Printf("[NOTIFY] Failed to publish %s %s to %d recipients: %v", kind, channel, len(recipients), err)
		return err
	}
	log.Printf("[NOTIFY] Published %s %s to %d recipients", kind, channel, len(recipients))
	return nil
}

// DemandLink is the unauthenticated edit link handed to the student.
func (s *NotificationService) DemandLink(d *models.Demand) string {
	return fmt.Sprintf("https://www.%s/moje-doucovani/%s/", s.cfg.Domain, d.Slug)
}

// modeFor picks the preference that applies to the demand class the tutor
// sees the demand in. ok is false when the demand is hidden from the tutor.
func modeFor(t *models.Tutor, d *models.Demand) (mode models.NoticeMode, ok bool) {
	if d.IsAimed() {
		if !d.VisibleTo(t.ID) {
			return models.NoticeNone, false
		}
		return t.Notices.Aimed, true
	}
	if d.SuitsTutor(t) {
		return t.Notices.Suited, true
	}
	return t.Notices.Any, true
}

// describe renders a demand for tutors. Only the student's first name is
// shown; the rest of the contact is revealed to the tutor who takes it.
func (s *NotificationService) describe(ctx context.Context, d *models.Demand) string {
	subject := fmt.Sprintf("subject #%d", d.SubjectID)
	if sub, err := s.store.GetSubject(ctx, d.SubjectID); err == nil {
		subject = sub.Name
	}
	if lvl, err := s.store.GetLevel(ctx, d.LevelID); err == nil {
		subject += " (" + lvl.Name + ")"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s, %s\n", subject, strings.TrimSpace(d.FirstName))
	if d.SubjectDescription != "" {
		fmt.Fprintf(&b, "%s\n", d.SubjectDescription)
	}
	if d.TimeDescription != "" {
		fmt.Fprintf(&b, "%s\n", d.TimeDescription)
	}
	return b.String()
}

// DemandCreated tells the tutors who want to hear about the demand right
// away, then confirms the demand to the student.
func (s *NotificationService) DemandCreated(ctx context.Context, d *models.Demand) {
	tutors, err := s.store.ListActiveTutors(ctx)
	if err != nil {
		log.Printf("[NOTIFY] Failed to load tutors for demand %d: %v", d.ID, err)
	} else {
		var emails, phones []string
		for _, t := range tutors {
			mode, ok := modeFor(t, d)
			if !ok {
				continue
			}
			if mode.EmailNow() && t.Email != "" {
				emails = append(emails, t.Email)
			}
			if mode.SMSNow() && t.HasVerifiedContact() {
				phones = append(phones, t.Phone)
			}
		}
		body := s.cfg.NewDemandMessage + "\n\n" + s.describe(ctx, d)
		s.send(ctx, "demand_created", ChannelEmail, emails, s.cfg.NewDemandSubject, body)
		s.send(ctx, "demand_created", ChannelSMS, phones, "", s.cfg.NewDemandMessage)
	}

	s.send(ctx, "demand_confirmation", ChannelEmail, []string{d.Email}, s.cfg.ConfirmNewSubject,
		s.cfg.ConfirmNewMessage+"\n"+s.DemandLink(d))
}

func (s *NotificationService) DemandUpdated(ctx context.Context, d *models.Demand) {
	s.send(ctx, "demand_updated", ChannelEmail, []string{d.Email}, s.cfg.ConfirmUpdatedSubject,
		s.cfg.ConfirmUpdatedMessage+"\n"+s.DemandLink(d))
}

// DemandTaken gives the student the contact of the tutor who took the demand.
func (s *NotificationService) DemandTaken(ctx context.Context, d *models.Demand, t *models.Tutor) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", t.FullName())
	if t.Email != "" {
		fmt.Fprintf(&b, "E-mail: %s\n", t.Email)
	}
	if t.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", t.Phone)
	}
	if t.Intro != "" {
		fmt.Fprintf(&b, "\n%s\n", t.Intro)
	}
	s.send(ctx, "demand_taken", ChannelEmail, []string{d.Email}, s.cfg.DemandTakenSubject, b.String())
}

func (s *NotificationService) CreditToppedUp(ctx context.Context, t *models.Tutor, amount, balance decimal.Decimal) {
	body := fmt.Sprintf("We received %s CZK. Your credit is now %s CZK.", amount.StringFixed(2), balance.StringFixed(2))
	s.send(ctx, "credit_topup", ChannelEmail, []string{t.Email}, s.cfg.TopupSubject, body)
}

func (s *NotificationService) PhoneCode(ctx context.Context, phone, code string) error {
	return s.send(ctx, "phone_code", ChannelSMS, []string{phone}, "", fmt.Sprintf(s.cfg.PhoneCodeMessage, code))
}

// PayLaterReminders writes to every tutor whose pay-later take is older than
// the grace period and still not covered by a top-up.
func (s *NotificationService) PayLaterReminders(ctx context.Context) (int, error) {
	debtors, err := s.store.ListPayLaterDebtors(ctx, s.now().Add(-s.grace))
	if err != nil {
		return 0, fmt.Errorf("list pay-later debtors: %w", err)
	}
	sent := 0
	for _, t := range debtors {
		body := fmt.Sprintf("Your credit is %s CZK. Please top it up using variable symbol %d.",
			t.Credit.StringFixed(2), t.ReferenceCode)
		if err := s.send(ctx, "pay_later_reminder", ChannelEmail, []string{t.Email}, s.cfg.ReminderSubject, body); err == nil {
			sent++
		}
	}
	return sent, nil
}

// DailyDigest sends each tutor one e-mail listing the active demands posted
// in the last day that fall into a class the tutor wants as a digest.
func (s *NotificationService) DailyDigest(ctx context.Context) (int, error) {
	demands, err := s.store.ListDemands(ctx, repository.DemandFilter{
		Statuses:    []models.DemandStatus{models.DemandActive},
		PostedSince: s.now().Add(-24 * time.Hour),
	})
	if err != nil {
		return 0, fmt.Errorf("list recent demands: %w", err)
	}
	if len(demands) == 0 {
		return 0, nil
	}
	tutors, err := s.store.ListActiveTutors(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tutors: %w", err)
	}

	descriptions := make(map[int64]string, len(demands))
	sent := 0
	for _, t := range tutors {
		if t.Email == "" {
			continue
		}
		var parts []string
		for _, d := range demands {
			mode, ok := modeFor(t, d)
			if !ok || !mode.EmailDigest() {
				continue
			}
			desc, seen := descriptions[d.ID]
			if !seen {
				desc = s.describe(ctx, d)
				descriptions[d.ID] = desc
			}
			parts = append(parts, desc)
		}
		if len(parts) == 0 {
			continue
		}
		if err := s.send(ctx, "daily_digest", ChannelEmail, []string{t.Email}, s.cfg.DigestSubject,
			strings.Join(parts, "\n")); err == nil {
			sent++
		}
	}
	return sent, nil
}
