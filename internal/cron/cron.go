package cron

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	cronv3 "github.com/robfig/cron/v3"

	"github.com/inboxd/inboxd/interfaces"
	cron_config "github.com/inboxd/inboxd/internal/cron/config"
	apperrors "github.com/inboxd/inboxd/internal/errors"
	"github.com/inboxd/inboxd/internal/logger"
	"github.com/inboxd/inboxd/internal/tracing"

	"github.com/pkg/errors"
)

// GroupSync serializes the jobs that touch sync state.
const GroupSync = "sync"

var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupSync: new(sync.Mutex),
	},
}

type CronManager struct {
	log        logger.Logger
	cron       *cronv3.Cron
	stopCh     chan struct{}
	jobIDs     map[string]cronv3.EntryID
	engine     interfaces.SyncEngine
	accounts   interfaces.AccountRepository
	syncStates interfaces.SyncStateRepository
}

func NewCronManager(log logger.Logger, engine interfaces.SyncEngine, accounts interfaces.AccountRepository, syncStates interfaces.SyncStateRepository) *CronManager {
	return &CronManager{
		log:        log,
		stopCh:     make(chan struct{}),
		jobIDs:     make(map[string]cronv3.EntryID),
		engine:     engine,
		accounts:   accounts,
		syncStates: syncStates,
	}
}

// Start initializes and starts the cron scheduler
func (cm *CronManager) Start() {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	close(cm.stopCh)
}

func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	if cronConfig.CronScheduleHeartbeat != "" {
		hostname, _ := os.Hostname()
		if hostname == "" {
			hostname = "local"
		}
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			cm.log.Infof("Cron heartbeat from host: %s", hostname)
		})
		if err != nil {
			cm.log.Fatalf("Could not add heartbeat cron job: %v", err)
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	if cronConfig.CronScheduleAccountSync != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleAccountSync, func() {
			jobLocks.locks[GroupSync].Lock()
			defer jobLocks.locks[GroupSync].Unlock()
			cm.syncAllAccounts()
		})
		if err != nil {
			cm.log.Fatalf("Could not add account sync cron job: %v", err)
		}
		cm.jobIDs["account_sync"] = id
		cm.log.Infof("Registered account sync job with schedule: %s", cronConfig.CronScheduleAccountSync)
	}

	if cronConfig.CronScheduleReleaseStuck != "" {
		after := time.Duration(cronConfig.StuckSyncReleaseAfterHours) * time.Hour
		id, err := c.AddFunc(cronConfig.CronScheduleReleaseStuck, func() {
			jobLocks.locks[GroupSync].Lock()
			defer jobLocks.locks[GroupSync].Unlock()
			cm.releaseStuckSyncs(after)
		})
		if err != nil {
			cm.log.Fatalf("Could not add stuck sync release cron job: %v", err)
		}
		cm.jobIDs["release_stuck"] = id
		cm.log.Infof("Registered stuck sync release job with schedule: %s", cronConfig.CronScheduleReleaseStuck)
	}
}

// syncAllAccounts runs one sync pass over every sync-enabled account.
// A rejected or deferred account is skipped, not treated as a failure.
func (cm *CronManager) syncAllAccounts() {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.syncAllAccounts")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	accounts, err := cm.accounts.ListSyncEnabled(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to list sync enabled accounts: %v", err)
		return
	}
	span.SetTag("accounts", len(accounts))

	for _, account := range accounts {
		select {
		case <-cm.stopCh:
			return
		default:
		}

		result, err := cm.engine.SyncNow(ctx, account.ID)
		if err != nil {
			if errors.Is(err, apperrors.ErrSyncAlreadyRunning) || errors.Is(err, apperrors.ErrSyncDeferred) {
				cm.log.Debugf("[%s] scheduled sync skipped: %v", account.ID, err)
				continue
			}
			cm.log.Errorf("[%s] scheduled sync failed: %v", account.ID, err)
			continue
		}
		cm.log.Infof("[%s] scheduled %s sync: %d new, %d updated, %d deleted",
			account.ID, result.Mode, result.NewMessages, result.UpdatedMessages, result.DeletedMessages)
	}
}

func (cm *CronManager) releaseStuckSyncs(olderThan time.Duration) {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.releaseStuckSyncs")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	released, err := cm.syncStates.ReleaseStuck(ctx, olderThan)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to release stuck sync states: %v", err)
		return
	}
	if released > 0 {
		cm.log.Warnf("Released %d stuck sync states", released)
	}
}
