// Package report runs one reconciliation pass over a subnet and presents the
// result.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paularlott/logger"

	"github.com/martinsuchenak/ipusage/internal/cidr"
	"github.com/martinsuchenak/ipusage/internal/inventory"
	"github.com/martinsuchenak/ipusage/internal/log"
	"github.com/martinsuchenak/ipusage/internal/pager"
	"github.com/martinsuchenak/ipusage/internal/usage"
	"github.com/martinsuchenak/ipusage/internal/worker"
	"github.com/martinsuchenak/ipusage/pkg/model"
)

// Stage names a step of the reconciliation pass
type Stage string

const (
	StageDescribe  Stage = "describe-subnet"
	StageEnumerate Stage = "enumerate"
	StageFetch     Stage = "fetch-interfaces"
)

// ErrNotRun is returned by RunMany for a subnet whose reconciliation never ran
var ErrNotRun = errors.New("reconciliation did not run")

// StageError reports which step of the pass failed
type StageError struct {
	Stage    Stage
	SubnetID string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.SubnetID, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Options tunes a reconciliation pass
type Options struct {
	MaxAddresses int  // largest block enumerated (0 = cidr.DefaultMaxAddresses)
	IPv6         bool // use the subnet's first IPv6 block instead of its IPv4 block
}

// Reconciler joins a subnet's address space with its interface inventory
type Reconciler struct {
	source     inventory.Source
	enumerator *cidr.Enumerator
	classifier *usage.Classifier
	opts       Options
	log        logger.Logger
}

// NewReconciler creates a reconciler reading from source
func NewReconciler(source inventory.Source, opts Options, l logger.Logger) *Reconciler {
	l = log.OrNull(l)
	return &Reconciler{
		source:     source,
		enumerator: cidr.NewEnumerator(opts.MaxAddresses),
		classifier: usage.NewClassifier(l),
		opts:       opts,
		log:        l,
	}
}

// Run classifies every address of the subnet. Any failure aborts the pass
// without a partial report.
func (r *Reconciler) Run(ctx context.Context, subnetID string) (*model.Report, error) {
	started := time.Now()

	subnet, err := r.source.Subnet(ctx, subnetID)
	if err != nil {
		return nil, &StageError{Stage: StageDescribe, SubnetID: subnetID, Err: err}
	}

	block, err := r.selectBlock(subnet)
	if err != nil {
		return nil, &StageError{Stage: StageEnumerate, SubnetID: subnetID, Err: err}
	}
	addrs, err := r.enumerator.Enumerate(block)
	if err != nil {
		return nil, &StageError{Stage: StageEnumerate, SubnetID: subnetID, Err: err}
	}
	r.log.Debug("Block enumerated", "subnet_id", subnetID, "cidr", block.String(), "addresses", len(addrs))

	ifaces, err := pager.Collect(ctx, r.source.InterfacePages(subnetID), r.log)
	if err != nil {
		return nil, &StageError{Stage: StageFetch, SubnetID: subnetID, Err: err}
	}
	r.log.Debug("Interfaces fetched", "subnet_id", subnetID, "records", len(ifaces))

	records := r.classifier.Classify(addrs, ifaces)
	summary := usage.Summarize(*subnet, block.String(), records)

	r.log.Info("Subnet reconciled",
		"subnet_id", subnetID,
		"cidr", summary.CIDR,
		"total", summary.Total,
		"free", summary.Free,
		"in_use", summary.InUse,
		"duration", time.Since(started).String())

	return &model.Report{
		ID:          generateID(),
		GeneratedAt: time.Now().UTC(),
		Subnet:      *subnet,
		Records:     records,
		Summary:     summary,
	}, nil
}

// RunMany reconciles several subnets on up to workers goroutines. Reports are
// returned in the order of subnetIDs; the first failure (in that order) aborts
// the batch.
func (r *Reconciler) RunMany(ctx context.Context, subnetIDs []string, workers int) ([]*model.Report, error) {
	reports := make([]*model.Report, len(subnetIDs))
	errs := make([]error, len(subnetIDs))

	pool := worker.NewPool(ctx, min(max(workers, 1), max(len(subnetIDs), 1)), r.log)
	pool.Start()
	results := make([]chan error, 0, len(subnetIDs))
	for i, id := range subnetIDs {
		result := make(chan error, 1)
		err := pool.Submit(worker.Job{
			ID: id,
			Handler: func(ctx context.Context) error {
				var err error
				reports[i], err = r.Run(ctx, id)
				return err
			},
			Result: result,
		})
		if err != nil {
			errs[i] = fmt.Errorf("reconciling %s: %w", id, err)
			break
		}
		results = append(results, result)
	}
	pool.Stop()

	// Jobs dequeued after cancellation report the context error without running
	for i, result := range results {
		if err := <-result; err != nil {
			errs[i] = err
		}
	}

	for i, err := range errs {
		if err == nil && reports[i] == nil {
			err = fmt.Errorf("reconciling %s: %w", subnetIDs[i], ErrNotRun)
		}
		if err != nil {
			r.log.Warn("Batch reconciliation failed", "subnet_id", subnetIDs[i], "error", err)
			return nil, err
		}
	}
	return reports, nil
}

func (r *Reconciler) selectBlock(subnet *model.Subnet) (cidr.Block, error) {
	if r.opts.IPv6 {
		if len(subnet.IPv6CIDRs) == 0 {
			return cidr.Block{}, &cidr.InvalidBlockError{Reason: "subnet has no IPv6 block"}
		}
		return cidr.Parse(subnet.IPv6CIDRs[0])
	}
	if subnet.CIDR == "" {
		return cidr.Block{}, &cidr.InvalidBlockError{Reason: "subnet has no IPv4 block"}
	}
	return cidr.Parse(subnet.CIDR)
}

// generateID generates a unique report ID
func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
