package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"memberverify/internal/artifact"
	"memberverify/internal/mailbox/gmail"
	"memberverify/internal/mailer"
	memberstore "memberverify/internal/member/store"
	"memberverify/internal/platform/config"
	"memberverify/internal/platform/postgres"
	platformredis "memberverify/internal/platform/redis"
	"memberverify/internal/ratelimit/ports"
	ratelimitmemory "memberverify/internal/ratelimit/store/memory"
	ratelimitredis "memberverify/internal/ratelimit/store/redis"
	"memberverify/internal/verification/matcher"
	"memberverify/pkg/platform/audit"
	auditmemory "memberverify/pkg/platform/audit/store/memory"
	auditpostgres "memberverify/pkg/platform/audit/store/postgres"
	"memberverify/pkg/platform/stream"
	pkgstrings "memberverify/pkg/platform/strings"
	txplatform "memberverify/pkg/platform/tx"
)

// infra holds the backing services chosen from configuration. Anything not
// configured falls back to an in-process implementation so the server runs
// locally without dependencies.
type infra struct {
	backend    string
	members    memberstore.Directory
	audit      audit.Store
	artifacts  artifact.Store
	limitStore ports.Store
	tx         txplatform.Runner
	mail       mailer.Sender
	bcc        []string
	mailbox    matcher.Mailbox
	publisher  *stream.Publisher

	db       *sql.DB
	redis    *platformredis.Client
	producer *stream.KafkaProducer
}

func openInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	in := &infra{}
	if err := in.openDatabase(ctx, cfg, log); err != nil {
		return nil, err
	}
	if err := in.openRedis(ctx, cfg, log); err != nil {
		in.Close()
		return nil, err
	}
	if err := in.openStorage(ctx, cfg, log); err != nil {
		in.Close()
		return nil, err
	}
	if err := in.openMail(ctx, cfg, log); err != nil {
		in.Close()
		return nil, err
	}
	if err := in.openStream(cfg, log); err != nil {
		in.Close()
		return nil, err
	}
	return in, nil
}

func (in *infra) openDatabase(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory member directory")
		in.backend = "memory"
		in.members = memberstore.NewInMemoryDirectory()
		in.audit = auditmemory.NewInMemoryStore()
		return nil
	}
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := postgres.Migrate(db, log); err != nil {
		_ = db.Close()
		return err
	}
	in.backend = "postgres"
	in.db = db
	in.members = memberstore.NewPostgres(db)
	in.audit = auditpostgres.New(db)
	in.tx = txplatform.NewPostgresRunner(db)
	return nil
}

func (in *infra) openRedis(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if client == nil {
		log.Info("REDIS_URL not set, rate limits are per process")
		in.limitStore = ratelimitmemory.New()
		return nil
	}
	in.redis = client
	in.limitStore = ratelimitredis.New(client.Client)
	return nil
}

func (in *infra) openStorage(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	s := cfg.Storage
	if s.Endpoint == "" {
		log.Warn("STORAGE_ENDPOINT not set, badge photos are kept in memory")
		in.artifacts = artifact.NewInMemoryStore(s.Bucket)
		return nil
	}
	store, err := artifact.NewMinIOStore(ctx, s.Endpoint, s.AccessKey, s.SecretKey, s.Bucket, s.UseSSL)
	if err != nil {
		return err
	}
	in.artifacts = store
	return nil
}

func (in *infra) openMail(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	in.bcc = pkgstrings.SplitAddresses(cfg.Mail.Bcc)
	if cfg.Mail.Host == "" {
		log.Warn("EMAIL_HOST not set, outgoing mail is held in memory")
		in.mail = mailer.NewOutbox()
	} else {
		smtp, err := mailer.NewSMTP(cfg.Mail)
		if err != nil {
			return err
		}
		in.mail = smtp
	}

	mb := cfg.Mailbox
	if mb.RefreshToken == "" || mb.CorporateDomain == "" {
		log.Info("mailbox not configured, email matching disabled")
		return nil
	}
	box, err := gmail.New(ctx, mb.ClientID, mb.ClientSecret, mb.RefreshToken)
	if err != nil {
		return err
	}
	in.mailbox = box
	return nil
}

// openStream mirrors verification events and audit entries to Kafka when
// brokers are configured.
func (in *infra) openStream(cfg config.Server, log *slog.Logger) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil
	}
	producer, err := stream.NewKafkaProducer(cfg.Kafka.Brokers)
	if err != nil {
		return err
	}
	in.producer = producer
	in.publisher = stream.NewPublisher(producer, cfg.Kafka.Topic,
		stream.WithLogger(log),
		stream.WithMetrics(stream.NewMetrics()),
	)
	in.members = memberstore.NewPublishing(in.members, in.publisher)
	in.audit = audit.NewPublishingStore(in.audit, in.publisher)
	return nil
}

func (in *infra) health(ctx context.Context) map[string]string {
	checks := map[string]string{"app": "ok"}
	probe := func(name string, err error) {
		if err != nil {
			checks[name] = fmt.Sprintf("error: %v", err)
			return
		}
		checks[name] = "ok"
	}
	if in.db != nil {
		probe("postgres", in.db.PingContext(ctx))
	}
	if in.redis != nil {
		probe("redis", in.redis.Health(ctx))
	}
	if in.producer != nil {
		probe("kafka", in.producer.Ping(ctx))
	}
	return checks
}

func (in *infra) Close() {
	if in.producer != nil {
		in.producer.Close()
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
	if in.db != nil {
		_ = in.db.Close()
	}
}
