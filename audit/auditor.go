package audit

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"landledger/core"
	"landledger/core/events"
	"landledger/core/state"
	"landledger/native/market"
	"landledger/native/revenue"
	"landledger/observability"
)

// Ledger is the node surface the auditor drives: a consistent state snapshot,
// the quarantine hook and the event journal.
type Ledger interface {
	WithStateRead(fn func(*state.Manager) error) error
	QuarantineAsset(assetID uint64, reason string) error
	Journal() *core.Journal
}

// Config captures the dependencies required to construct an Auditor.
type Config struct {
	Ledger    Ledger
	OutputDir string
	Policy    Policy
	Logger    *slog.Logger
	Now       func() time.Time
}

// Auditor re-derives every conservation invariant from raw state on a
// schedule: per-asset share sums, escrowed listing inventory and the revenue
// vault float. Findings are written to CSV and Parquet artefacts, digested,
// checkpointed, and surfaced as journal events.
type Auditor struct {
	ledger     Ledger
	outputDir  string
	policy     Policy
	log        *slog.Logger
	now        func() time.Time
	checkpoint *Checkpoint

	mu   sync.Mutex
	last *Report
}

// New builds a configured auditor and restores the last report summary from
// the checkpoint file under the output directory.
func New(cfg Config) (*Auditor, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("audit: ledger is required")
	}
	outputDir := strings.TrimSpace(cfg.OutputDir)
	if outputDir == "" {
		outputDir = filepath.Join("land-data", "audit")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: ensure output dir: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	checkpoint, err := OpenCheckpoint(filepath.Join(outputDir, "checkpoint.db"))
	if err != nil {
		return nil, err
	}
	a := &Auditor{
		ledger:     cfg.Ledger,
		outputDir:  outputDir,
		policy:     cfg.Policy,
		log:        logger.With("component", "audit"),
		now:        nowFn,
		checkpoint: checkpoint,
	}
	if last, ok, err := checkpoint.LoadLatest(); err != nil {
		logger.Warn("audit checkpoint unreadable", "error", err)
	} else if ok {
		a.last = last
	}
	return a, nil
}

// Close releases the checkpoint database.
func (a *Auditor) Close() error {
	if a == nil || a.checkpoint == nil {
		return nil
	}
	return a.checkpoint.Close()
}

// Latest returns the most recent report, if any run has completed.
func (a *Auditor) Latest() (*Report, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		return nil, false
	}
	return a.last, true
}

// Run executes one audit pass. Runs are serialized; a second caller blocks
// until the first finishes.
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	started := a.now()
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: started,
	}

	if err := a.snapshot(report); err != nil {
		observability.Audit().ObserveRun(nil, a.now().Sub(started), err)
		return nil, err
	}
	report.CompletedAt = a.now()

	if err := a.writeArtifacts(report); err != nil {
		observability.Audit().ObserveRun(report.AnomaliesByKind(), a.now().Sub(started), err)
		return nil, err
	}
	if err := a.checkpoint.SaveLatest(report); err != nil {
		a.log.Error("audit checkpoint write failed", "error", err)
	}
	a.pruneReports()
	a.react(ctx, report)

	observability.Audit().ObserveRun(report.AnomaliesByKind(), report.CompletedAt.Sub(started), nil)
	a.log.Info("audit run complete",
		"runId", report.RunID,
		"assets", len(report.Rows),
		"anomalies", len(report.Anomalies),
	)
	a.last = report
	return report, nil
}

// snapshot walks the full state under the node's command mutex so every row
// reflects one consistent point in time.
func (a *Auditor) snapshot(report *Report) error {
	return a.ledger.WithStateRead(func(manager *state.Manager) error {
		ids, err := manager.AssetList()
		if err != nil {
			return fmt.Errorf("audit: list assets: %w", err)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		escrow := market.EscrowAddress()
		totalPending := big.NewInt(0)

		for _, id := range ids {
			asset, ok := manager.AssetGet(id)
			if !ok {
				continue
			}
			row := ReportRow{
				AssetID:    id,
				Symbol:     asset.Symbol,
				Frozen:     asset.Frozen,
				Consistent: true,
			}
			issued := valueOrZero(asset.IssuedShares)
			row.IssuedShares = issued.String()
			row.MaxShares = valueOrZero(asset.MaxShares).String()

			holders, err := manager.HolderList(id)
			if err != nil {
				return fmt.Errorf("audit: holders of asset %d: %w", id, err)
			}
			holderSum := big.NewInt(0)
			for _, holder := range holders {
				balance, err := manager.HoldingGet(id, holder)
				if err != nil {
					return fmt.Errorf("audit: holding of asset %d: %w", id, err)
				}
				holderSum.Add(holderSum, balance)
			}
			row.HolderSum = holderSum.String()
			if holderSum.Cmp(issued) != 0 {
				row.Consistent = false
				report.Anomalies = append(report.Anomalies, Anomaly{
					Kind:     AnomalyShareSumMismatch,
					AssetID:  id,
					Detail:   fmt.Sprintf("holder balances do not sum to issued shares for %s", asset.Symbol),
					Expected: issued.String(),
					Actual:   holderSum.String(),
				})
			}
			if asset.MaxShares != nil && issued.Cmp(asset.MaxShares) > 0 {
				row.Consistent = false
				report.Anomalies = append(report.Anomalies, Anomaly{
					Kind:     AnomalyCapacityBreach,
					AssetID:  id,
					Detail:   fmt.Sprintf("issued shares exceed the registered cap for %s", asset.Symbol),
					Expected: asset.MaxShares.String(),
					Actual:   issued.String(),
				})
			}

			escrowBalance, err := manager.HoldingGet(id, escrow)
			if err != nil {
				return fmt.Errorf("audit: escrow holding of asset %d: %w", id, err)
			}
			row.EscrowBalance = escrowBalance.String()
			openIDs, err := manager.OpenListings(id)
			if err != nil {
				return fmt.Errorf("audit: open listings of asset %d: %w", id, err)
			}
			openShares := big.NewInt(0)
			for _, listingID := range openIDs {
				listing, ok := manager.ListingGet(listingID)
				if !ok {
					continue
				}
				openShares.Add(openShares, valueOrZero(listing.SharesRemaining))
			}
			row.OpenListingShares = openShares.String()
			if escrowBalance.Cmp(openShares) != 0 {
				row.Consistent = false
				report.Anomalies = append(report.Anomalies, Anomaly{
					Kind:     AnomalyEscrowMismatch,
					AssetID:  id,
					Detail:   fmt.Sprintf("escrow inventory does not match open listings for %s", asset.Symbol),
					Expected: openShares.String(),
					Actual:   escrowBalance.String(),
				})
			}

			pending := big.NewInt(0)
			if pool, ok := manager.PoolGet(id); ok {
				pending = pool.Pending()
			}
			row.PoolPending = pending.String()
			totalPending.Add(totalPending, pending)

			report.Rows = append(report.Rows, row)
		}

		vault := revenue.VaultAddress()
		vaultAccount, err := manager.GetAccount(vault[:])
		if err != nil {
			return fmt.Errorf("audit: vault account: %w", err)
		}
		vaultBalance := valueOrZero(vaultAccount.Balance)
		if vaultBalance.Cmp(totalPending) < 0 {
			report.Anomalies = append(report.Anomalies, Anomaly{
				Kind:     AnomalyVaultUnderfunded,
				Detail:   "revenue vault balance is below the sum of pending pool funds",
				Expected: totalPending.String(),
				Actual:   vaultBalance.String(),
			})
		}
		return nil
	})
}

func (a *Auditor) writeArtifacts(report *Report) error {
	runDir := filepath.Join(a.outputDir, fmt.Sprintf("%s_%s",
		report.StartedAt.UTC().Format("20060102T150405Z"), report.RunID[:8]))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("audit: ensure run dir: %w", err)
	}
	csvPath := filepath.Join(runDir, "conservation.csv")
	if err := writeCSV(csvPath, report.Rows); err != nil {
		return err
	}
	parquetPath := filepath.Join(runDir, "conservation.parquet")
	if err := writeParquet(parquetPath, report.Rows); err != nil {
		return err
	}
	digest, err := digestFile(csvPath)
	if err != nil {
		return err
	}
	report.CSVPath = csvPath
	report.ParquetPath = parquetPath
	report.Digest = digest
	return nil
}

// react publishes journal events and quarantines assets whose share sums
// diverged. Quarantine runs outside the state read so it can take the
// command mutex itself.
func (a *Auditor) react(ctx context.Context, report *Report) {
	now := report.CompletedAt.Unix()
	if a.policy.EmitEvents {
		for _, anomaly := range report.Anomalies {
			a.ledger.Journal().Append(events.AuditAnomaly{
				RunID:     report.RunID,
				AssetID:   anomaly.AssetID,
				Kind:      anomaly.Kind,
				Detail:    anomaly.Detail,
				Timestamp: now,
			}.Event())
		}
		a.ledger.Journal().Append(events.AuditCompleted{
			RunID:     report.RunID,
			Assets:    len(report.Rows),
			Anomalies: len(report.Anomalies),
			Digest:    report.Digest,
			Timestamp: now,
		}.Event())
	}
	if !a.policy.QuarantineOnMismatch {
		return
	}
	for _, anomaly := range report.Anomalies {
		if ctx.Err() != nil {
			return
		}
		if anomaly.Kind != AnomalyShareSumMismatch {
			continue
		}
		reason := fmt.Sprintf("audit %s: %s", report.RunID[:8], anomaly.Detail)
		if err := a.ledger.QuarantineAsset(anomaly.AssetID, reason); err != nil {
			a.log.Error("quarantine failed", "assetId", anomaly.AssetID, "error", err)
		}
	}
}

// pruneReports applies the retention policy to old run directories. Failures
// are logged, never fatal.
func (a *Auditor) pruneReports() {
	entries, err := os.ReadDir(a.outputDir)
	if err != nil {
		a.log.Warn("retention scan failed", "error", err)
		return
	}
	type runDir struct {
		name string
		mod  time.Time
	}
	dirs := make([]runDir, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dirs = append(dirs, runDir{name: entry.Name(), mod: info.ModTime()})
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].mod.After(dirs[j].mod) })

	cutoff := a.now().AddDate(0, 0, -a.policy.RetentionDays)
	for i, dir := range dirs {
		expired := a.policy.RetentionDays > 0 && dir.mod.Before(cutoff)
		overCap := a.policy.MaxReports > 0 && i >= a.policy.MaxReports
		if !expired && !overCap {
			continue
		}
		path := filepath.Join(a.outputDir, dir.name)
		if err := os.RemoveAll(path); err != nil {
			a.log.Warn("retention prune failed", "path", path, "error", err)
		}
	}
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
