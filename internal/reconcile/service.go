// Package reconcile runs reconciliation passes: snapshot the source, validate,
// classify, aggregate, verify, then persist the ledger in a single write.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/recon/internal/classify"
	"github.com/cleared-dev/recon/internal/ledger"
	"github.com/cleared-dev/recon/internal/logger"
	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/storage"
	"github.com/cleared-dev/recon/internal/verify"
)

// Options tunes a Service.
type Options struct {
	PageSize    int // transactions per ListTransactions call; 0 = store default
	Parallelism int // concurrent chains in ReconcileMany; <1 means 1
	// RecordFailures persists ledgers that fail verification. When false a
	// failing pass is reported but leaves the store untouched.
	RecordFailures bool
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{PageSize: storage.DefaultPageSize, Parallelism: 4, RecordFailures: true}
}

// Outcome is the full product of one pass.
type Outcome struct {
	Ledger model.Ledger
	Result model.VerificationResult
	Saved  bool

	// Transactions are the classified transactions the ledger aggregates, in
	// source order, and Labels their ownership by transaction ID.
	Transactions []model.RawTransaction
	Labels       map[string]model.Label
}

// Service reconciles ledgers against a store using one registry snapshot.
type Service struct {
	store    storage.Store
	registry *classify.Registry
	opts     Options
}

// NewService creates a Service. A nil registry classifies with no suppliers.
func NewService(store storage.Store, reg *classify.Registry, opts Options) *Service {
	if reg == nil {
		reg = classify.NewRegistry(nil, nil, nil)
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Service{store: store, registry: reg, opts: opts}
}

// Registry returns the registry snapshot the service classifies with.
func (s *Service) Registry() *classify.Registry {
	return s.registry
}

// Reconcile runs one pass for key and returns its verification result.
func (s *Service) Reconcile(ctx context.Context, key model.LedgerKey) (model.VerificationResult, error) {
	out, err := s.Run(ctx, key)
	if err != nil {
		return model.VerificationResult{}, err
	}
	return out.Result, nil
}

// Run runs one pass for key. Store failures wrap model.ErrDependency and
// abort before anything is written.
func (s *Service) Run(ctx context.Context, key model.LedgerKey) (Outcome, error) {
	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
		"ledger":           key.String(),
		"registry_version": s.registry.Version(),
	})

	snap, err := s.snapshot(ctx, key)
	if err != nil {
		return Outcome{}, err
	}

	period := model.AccountPeriod{Key: key, Currency: snap.currency, Accounts: snap.accounts}
	if snap.prior != nil && snap.prior.IsVerified() {
		owner, counterparty := ledger.CarryForward(*snap.prior)
		period.OwnerOpening, period.CounterpartyOpening = &owner, &counterparty
	}

	accepted, invalid := ledger.ValidateTransactions(period, snap.txns)
	batch, err := classify.ClassifyBatch(accepted, s.registry, classify.Overrides(snap.overrides))
	if err != nil {
		return Outcome{}, fmt.Errorf("classify %s: %w", key, err)
	}
	rejected := append(invalid, batch.Rejected...)
	logRejected(log, rejected)

	included := make([]model.RawTransaction, 0, len(batch.Order))
	for _, txn := range accepted {
		if _, ok := batch.Labels[txn.ID]; ok {
			included = append(included, txn)
		}
	}

	led, err := ledger.Aggregate(period, included, batch.Labels)
	if err != nil {
		return Outcome{}, fmt.Errorf("aggregate %s: %w", key, err)
	}
	led.RegistryVersion = s.registry.Version()
	log.Debug().Msg(ledger.String(led))

	res := verify.Verify(led, snap.txns, snap.prior)
	for _, r := range rejected {
		res.Rejected = append(res.Rejected, r.TransactionID)
	}
	led.Status = model.StatusFailed
	if res.Passed {
		led.Status = model.StatusVerified
	}

	if !res.Passed && !s.opts.RecordFailures {
		log.Info().Int("issues", len(res.Issues)).Msg("verification failed; ledger not recorded")
		return Outcome{Ledger: led, Result: res, Transactions: included, Labels: batch.Labels}, nil
	}

	saved, err := s.store.SaveLedger(ctx, led, res)
	if err != nil {
		return Outcome{}, dependency("save ledger "+key.String(), err)
	}
	res.LedgerID = saved.ID

	ev := log.Info()
	if !res.Passed {
		ev = log.Warn()
	}
	ev.Str("ledger_id", saved.ID).
		Str("status", string(saved.Status)).
		Int("transactions", len(snap.txns)).
		Int("issues", len(res.Issues)).
		Msg("ledger reconciled")
	return Outcome{Ledger: saved, Result: res, Saved: true, Transactions: included, Labels: batch.Labels}, nil
}

type snapshot struct {
	accounts  []model.StatementAccount
	currency  string
	txns      []model.RawTransaction
	overrides map[string]model.Label
	prior     *model.Ledger
}

// snapshot reads everything a pass needs before any computation starts.
func (s *Service) snapshot(ctx context.Context, key model.LedgerKey) (snapshot, error) {
	var snap snapshot
	var err error

	snap.accounts, snap.currency, err = s.store.PeriodAccounts(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return snapshot{}, fmt.Errorf("no statements for %s: %w", key, err)
	}
	if err != nil {
		return snapshot{}, dependency("read period accounts", err)
	}

	for _, acct := range snap.accounts {
		token := ""
		for {
			if err := ctx.Err(); err != nil {
				return snapshot{}, err
			}
			page, err := s.store.ListTransactions(ctx, acct.AccountID, key.Period, s.opts.PageSize, token)
			if err != nil {
				return snapshot{}, dependency("list transactions for "+acct.AccountID, err)
			}
			snap.txns = append(snap.txns, page.Transactions...)
			if page.NextPageToken == "" {
				break
			}
			token = page.NextPageToken
		}
	}

	snap.overrides, err = s.store.GetOverrides(ctx, key)
	if err != nil {
		return snapshot{}, dependency("read overrides", err)
	}

	prior, err := s.store.PriorLedger(ctx, key)
	switch {
	case err == nil:
		snap.prior = &prior
	case errors.Is(err, storage.ErrNotFound):
	default:
		return snapshot{}, dependency("read prior ledger", err)
	}

	// A month after the prior ledger with statements but no ledger of its own
	// has not been verified yet. Without any prior ledger only the preceding
	// month is checked.
	floor := key.Period.Prev().Prev()
	if snap.prior != nil {
		floor = snap.prior.Key.Period
	}
	for p := key.Period.Prev(); floor.Before(p); p = p.Prev() {
		k := model.LedgerKey{CustomerID: key.CustomerID, Bank: key.Bank, Period: p}
		has, err := s.store.HasPeriod(ctx, k)
		if err != nil {
			return snapshot{}, dependency("check prior period", err)
		}
		if has {
			snap.prior = &model.Ledger{Key: k, Status: model.StatusPending}
			break
		}
	}
	return snap, nil
}

// ReconcileRange reconciles one chain from..to inclusive, strictly in
// calendar order. Months without statements are skipped.
func (s *Service) ReconcileRange(ctx context.Context, customerID, bank string, from, to model.Period) ([]Outcome, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("range end %s is before start %s", to, from)
	}
	var keys []model.LedgerKey
	for p := from; !to.Before(p); p = p.Next() {
		keys = append(keys, model.LedgerKey{CustomerID: customerID, Bank: bank, Period: p})
	}
	return s.runChain(ctx, keys, true)
}

// ReconcileMany reconciles the given keys. Keys of one (customer, bank) chain
// run sequentially in calendar order; independent chains run in parallel up
// to Options.Parallelism. Outcomes are ordered by customer, bank, period.
func (s *Service) ReconcileMany(ctx context.Context, keys []model.LedgerKey) ([]Outcome, error) {
	type chainID struct{ customer, bank string }
	chains := make(map[chainID][]model.LedgerKey)
	seen := make(map[model.LedgerKey]bool)
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		id := chainID{k.CustomerID, k.Bank}
		chains[id] = append(chains[id], k)
	}
	ids := make([]chainID, 0, len(chains))
	for id, ks := range chains {
		sort.Slice(ks, func(i, j int) bool { return ks[i].Period.Before(ks[j].Period) })
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].customer != ids[j].customer {
			return ids[i].customer < ids[j].customer
		}
		return ids[i].bank < ids[j].bank
	})

	results := make([][]Outcome, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Parallelism)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			out, err := s.runChain(gctx, chains[id], false)
			if err != nil {
				return fmt.Errorf("chain %s/%s: %w", id.customer, id.bank, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Outcome
	for _, out := range results {
		all = append(all, out...)
	}
	return all, nil
}

func (s *Service) runChain(ctx context.Context, keys []model.LedgerKey, skipMissing bool) ([]Outcome, error) {
	var out []Outcome
	for _, key := range keys {
		o, err := s.Run(ctx, key)
		if skipMissing && errors.Is(err, storage.ErrNotFound) {
			log := logger.FromContext(ctx)
			log.Warn().Str("ledger", key.String()).Msg("no statements; month skipped")
			continue
		}
		if err != nil {
			return out, err
		}
		out = append(out, o)
	}
	return out, nil
}

// ApplyOverride records a manual ownership correction. The ledgers of the
// affected period and of every later period in its chain are superseded and
// must be reconciled again, in calendar order.
func (s *Service) ApplyOverride(ctx context.Context, txnID string, owner model.Owner, reason, actor string) error {
	if !owner.Valid() {
		return fmt.Errorf("invalid owner %q", owner)
	}
	if reason == "" || actor == "" {
		return fmt.Errorf("override of %s needs a reason and an actor", txnID)
	}
	err := s.store.PutOverride(ctx, txnID, owner, reason, actor)
	if errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if err != nil {
		return dependency("write override", err)
	}
	log := logger.FromContext(ctx)
	log.Info().
		Str("transaction", txnID).
		Str("owner", string(owner)).
		Str("actor", actor).
		Msg("override recorded")
	return nil
}

func logRejected(log zerolog.Logger, rejected []*model.InputError) {
	for _, r := range rejected {
		log.Warn().
			Str("transaction", r.TransactionID).
			Str("kind", string(r.Kind)).
			Msg(r.Description)
	}
}

func dependency(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return model.DependencyError(op, err)
}
