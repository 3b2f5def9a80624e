package workers

import (
	"context"
	"log"
	"time"

	"casino-wager-system/services"
)

// retryBatchSize bounds how many stuck settlements one tick re-drives.
const retryBatchSize = 50

// PollUnsettled re-drives settlements whose journal row never flipped to
// settled — a crash or ledger outage between the journal write and the
// final credit leaves exactly this residue. Every leg is idempotent on
// its reference, so re-applying a half-finished settlement completes it
// without duplicating value.
func PollUnsettled(ctx context.Context, executor *services.SettlementExecutor, journal services.SettlementJournal, pollInterval time.Duration) {
	log.Println("Starting settlement retry polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Settlement retry polling stopped.")
			return
		case <-ticker.C:
			records, err := journal.Unsettled(retryBatchSize)
			if err != nil {
				log.Printf("❌ Error loading unsettled records: %v", err)
				continue
			}
			if len(records) == 0 {
				continue
			}

			log.Printf("📥 Re-driving %d unsettled record(s)...", len(records))
			completed := 0
			for i := range records {
				if err := executor.Apply(&records[i]); err != nil {
					// Leave it for the next tick; the journal row still marks it pending.
					log.Printf("❌ Retry failed for challenge %s: %v", records[i].ChallengeID, err)
					continue
				}
				completed++
			}
			if completed > 0 {
				log.Printf("✅ Completed %d stuck settlement(s).", completed)
			}
		}
	}
}
