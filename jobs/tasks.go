package jobs

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskJournalRemediation flags a committed ledger write whose journal
	// failed to post.
	TaskJournalRemediation = "ledger:remediation"
	// TaskLedgerIntegrity triggers the nightly ledger integrity scan.
	TaskLedgerIntegrity = "ledger:integrity"
)
