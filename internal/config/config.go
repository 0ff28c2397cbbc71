package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ChargeTable holds the base charge indexed by [students tier][lessons tier].
type ChargeTable [4][4]int

var DefaultChargeTable = ChargeTable{
	{30, 60, 140, 200},
	{40, 100, 200, 300},
	{70, 150, 300, 400},
	{80, 200, 400, 500},
}

type BankConfig struct {
	APIURL             string
	Token              string
	AccountNumber      string
	IBAN               string
	Currency           string
	MinRequestInterval time.Duration
	RequestTimeout     time.Duration
	InitialLastID      int64
	DetailSyncTimeout  time.Duration
}

type NotificationConfig struct {
	Domain                string
	DefaultEmail          string
	Exchange              string
	NewDemandSubject      string
	NewDemandMessage      string
	ConfirmNewSubject     string
	ConfirmNewMessage     string
	ConfirmUpdatedSubject string
	ConfirmUpdatedMessage string
	DemandTakenSubject    string
	TopupSubject          string
	ReminderSubject       string
	DigestSubject         string
	PhoneCodeMessage      string
}

type PhoneConfig struct {
	CodeLength  int
	CodeTTL     time.Duration
	MaxAttempts int
}

type WorkerConfig struct {
	SyncSchedule      string
	ReconcileSchedule string
	DigestSchedule    string
	ReminderSchedule  string
}

// Config is the application configuration, loaded once at startup and
// passed explicitly to the services that need it.
type Config struct {
	Charges       ChargeTable
	PayLaterGrace time.Duration
	SlugLength    int
	SlugRetries   int
	AdminAPIKey   string
	RabbitMQURL   string
	Bank          BankConfig
	Notifications NotificationConfig
	Phone         PhoneConfig
	Worker        WorkerConfig
}

// BindEnv maps environment variables onto the dotted viper keys.
func BindEnv() {
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("admin.api_key", "ADMIN_API_KEY")
	viper.BindEnv("rabbitmq.url", "RABBITMQ_URL")

	viper.BindEnv("bank.api_url", "FIO_API_URL")
	viper.BindEnv("bank.token", "FIO_API_TOKEN")
	viper.BindEnv("bank.account_number", "BANK_ACCOUNT_NUMBER")
	viper.BindEnv("bank.iban", "BANK_IBAN")
	viper.BindEnv("bank.min_request_interval", "FIO_API_MIN_REQUEST_INTERVAL")
	viper.BindEnv("bank.request_timeout", "FIO_API_REQUEST_TIMEOUT")
	viper.BindEnv("bank.initial_last_id", "FIO_API_INITIAL_LAST_ID")

	viper.BindEnv("charges.table", "CHARGE_TABLE")
	viper.BindEnv("charges.pay_later_grace", "PAY_LATER_GRACE")
	viper.BindEnv("site.domain", "SITE_DOMAIN")
	viper.BindEnv("site.default_email", "DEFAULT_EMAIL")

	viper.BindEnv("worker.sync_schedule", "WORKER_SYNC_SCHEDULE")
	viper.BindEnv("worker.reconcile_schedule", "WORKER_RECONCILE_SCHEDULE")
	viper.BindEnv("worker.digest_schedule", "WORKER_DIGEST_SCHEDULE")
	viper.BindEnv("worker.reminder_schedule", "WORKER_REMINDER_SCHEDULE")
}

func setDefaults() {
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("jwt.expiry_hours", 24)

	viper.SetDefault("bank.api_url", "https://www.fio.cz/ib_api/rest")
	viper.SetDefault("bank.currency", "CZK")
	viper.SetDefault("bank.min_request_interval", 30*time.Second)
	viper.SetDefault("bank.request_timeout", 15*time.Second)
	viper.SetDefault("bank.detail_sync_timeout", 3*time.Second)
	viper.SetDefault("bank.initial_last_id", int64(14462590267))

	viper.SetDefault("charges.pay_later_grace", 72*time.Hour)
	viper.SetDefault("demands.slug_length", 32)
	viper.SetDefault("demands.slug_retries", 32)

	viper.SetDefault("rabbitmq.exchange", "tutoring_events")
	viper.SetDefault("site.domain", "doucovani.cz")
	viper.SetDefault("site.default_email", "info@doucovani.cz")
	viper.SetDefault("notifications.new_demand_subject", "New demand")
	viper.SetDefault("notifications.new_demand_message", "A new demand has been added")
	viper.SetDefault("notifications.confirm_new_subject", "New demand")
	viper.SetDefault("notifications.confirm_new_message", "Your demand was added. You can view and edit it using this link")
	viper.SetDefault("notifications.confirm_updated_subject", "Demand updated")
	viper.SetDefault("notifications.confirm_updated_message", "Your demand was updated. You can view and edit it using this link")
	viper.SetDefault("notifications.demand_taken_subject", "A tutor has taken your demand")
	viper.SetDefault("notifications.topup_subject", "Credit topped up")
	viper.SetDefault("notifications.reminder_subject", "Please top up your credit")
	viper.SetDefault("notifications.digest_subject", "Daily demand overview")
	viper.SetDefault("notifications.phone_code_message", "Your verification code is %s")

	viper.SetDefault("phone.code_length", 6)
	viper.SetDefault("phone.code_ttl", 300*time.Second)
	viper.SetDefault("phone.max_attempts", 5)

	viper.SetDefault("worker.sync_schedule", "@every 1m")
	viper.SetDefault("worker.reconcile_schedule", "@every 15m")
	viper.SetDefault("worker.digest_schedule", "0 7 * * *")
	viper.SetDefault("worker.reminder_schedule", "0 9 * * *")
}

// Load builds the Config from viper, applying defaults first.
func Load() (*Config, error) {
	setDefaults()

	charges := DefaultChargeTable
	if raw := viper.GetString("charges.table"); raw != "" {
		parsed, err := ParseChargeTable(raw)
		if err != nil {
			return nil, err
		}
		charges = parsed
	}

	cfg := &Config{
		Charges:       charges,
		PayLaterGrace: viper.GetDuration("charges.pay_later_grace"),
		SlugLength:    viper.GetInt("demands.slug_length"),
		SlugRetries:   viper.GetInt("demands.slug_retries"),
		AdminAPIKey:   viper.GetString("admin.api_key"),
		RabbitMQURL:   viper.GetString("rabbitmq.url"),
		Bank: BankConfig{
			APIURL:             strings.TrimRight(viper.GetString("bank.api_url"), "/"),
			Token:              viper.GetString("bank.token"),
			AccountNumber:      viper.GetString("bank.account_number"),
			IBAN:               viper.GetString("bank.iban"),
			Currency:           viper.GetString("bank.currency"),
			MinRequestInterval: viper.GetDuration("bank.min_request_interval"),
			RequestTimeout:     viper.GetDuration("bank.request_timeout"),
			InitialLastID:      viper.GetInt64("bank.initial_last_id"),
			DetailSyncTimeout:  viper.GetDuration("bank.detail_sync_timeout"),
		},
		Notifications: NotificationConfig{
			Domain:                viper.GetString("site.domain"),
			DefaultEmail:          viper.GetString("site.default_email"),
			Exchange:              viper.GetString("rabbitmq.exchange"),
			NewDemandSubject:      viper.GetString("notifications.new_demand_subject"),
			NewDemandMessage:      viper.GetString("notifications.new_demand_message"),
			ConfirmNewSubject:     viper.GetString("notifications.confirm_new_subject"),
			ConfirmNewMessage:     viper.GetString("notifications.confirm_new_message"),
			ConfirmUpdatedSubject: viper.GetString("notifications.confirm_updated_subject"),
			ConfirmUpdatedMessage: viper.GetString("notifications.confirm_updated_message"),
			DemandTakenSubject:    viper.GetString("notifications.demand_taken_subject"),
			TopupSubject:          viper.GetString("notifications.topup_subject"),
			ReminderSubject:       viper.GetString("notifications.reminder_subject"),
			DigestSubject:         viper.GetString("notifications.digest_subject"),
			PhoneCodeMessage:      viper.GetString("notifications.phone_code_message"),
		},
		Phone: PhoneConfig{
			CodeLength:  viper.GetInt("phone.code_length"),
			CodeTTL:     viper.GetDuration("phone.code_ttl"),
			MaxAttempts: viper.GetInt("phone.max_attempts"),
		},
		Worker: WorkerConfig{
			SyncSchedule:      viper.GetString("worker.sync_schedule"),
			ReconcileSchedule: viper.GetString("worker.reconcile_schedule"),
			DigestSchedule:    viper.GetString("worker.digest_schedule"),
			ReminderSchedule:  viper.GetString("worker.reminder_schedule"),
		},
	}

	if cfg.SlugRetries < 1 {
		return nil, fmt.Errorf("demands.slug_retries must be at least 1")
	}
	if cfg.Phone.CodeLength < 4 || cfg.Phone.CodeLength > 9 {
		return nil, fmt.Errorf("phone.code_length must be between 4 and 9")
	}
	return cfg, nil
}

// ParseChargeTable reads four semicolon separated rows of four comma
// separated charges, one row per students tier.
func ParseChargeTable(raw string) (ChargeTable, error) {
	var table ChargeTable
	rows := strings.Split(strings.TrimSpace(raw), ";")
	if len(rows) != 4 {
		return table, fmt.Errorf("charge table needs 4 rows, got %d", len(rows))
	}
	for i, row := range rows {
		cells := strings.Split(row, ",")
		if len(cells) != 4 {
			return table, fmt.Errorf("charge table row %d needs 4 values, got %d", i+1, len(cells))
		}
		for j, cell := range cells {
			v, err := strconv.Atoi(strings.TrimSpace(cell))
			if err != nil {
				return table, fmt.Errorf("charge table row %d: %w", i+1, err)
			}
			if v < 0 {
				return table, fmt.Errorf("charge table row %d: negative charge %d", i+1, v)
			}
			table[i][j] = v
		}
	}
	return table, nil
}
