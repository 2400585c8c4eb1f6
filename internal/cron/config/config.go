package config

type Config struct {
	// Schedules use the six-field cron format with a seconds column.
	// An empty schedule disables the job.
	CronScheduleHeartbeat      string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	CronScheduleAccountSync    string `env:"CRON_SCHEDULE_ACCOUNT_SYNC" envDefault:"0 */5 * * * *"`
	CronScheduleReleaseStuck   string `env:"CRON_SCHEDULE_RELEASE_STUCK" envDefault:"0 */15 * * * *"`
	StuckSyncReleaseAfterHours int    `env:"CRON_STUCK_SYNC_RELEASE_AFTER_HOURS" envDefault:"1"`
}
