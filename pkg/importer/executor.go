package importer

import (
	"context"

	"github.com/partsync/partsync/pkg/catalog"
	"github.com/partsync/partsync/pkg/errors"
	"github.com/partsync/partsync/pkg/parts"
	"github.com/partsync/partsync/pkg/plan"
)

// Executor applies reconciliation plans to the target catalog. It is
// deliberately dumb: operations run in plan order, the first rejection
// stops the plan, and nothing is rolled back. Completed operations stay
// applied; because every mutation is idempotent the next run finishes
// the remainder.
type Executor struct {
	mutator catalog.Mutator
}

// NewExecutor creates an Executor over a catalog mutator.
func NewExecutor(mutator catalog.Mutator) *Executor {
	return &Executor{mutator: mutator}
}

// Apply runs the plan. It returns the audit trail of executed
// operations, the id of the part the plan targeted (empty when the plan
// only touched categories), and the first error, wrapped as a
// MutationError carrying the failing operation's index.
func (e *Executor) Apply(ctx context.Context, p *plan.Plan) ([]parts.ExecutedOp, string, error) {
	executed := make([]parts.ExecutedOp, 0, len(p.Ops))
	partID := ""

	for i, op := range p.Ops {
		if err := ctx.Err(); err != nil {
			return executed, partID, errors.WrapMutation(i, string(op.Kind), errors.ErrCanceled)
		}

		target := op.PartID
		if target == "" {
			target = partID
		}

		err := e.applyOne(ctx, op, target, &partID)
		record := parts.ExecutedOp{Index: i, Description: op.Description}
		if err != nil {
			record.Err = err.Error()
			executed = append(executed, record)
			return executed, partID, errors.WrapMutation(i, string(op.Kind), err)
		}
		executed = append(executed, record)
	}
	return executed, partID, nil
}

func (e *Executor) applyOne(ctx context.Context, op plan.Operation, target string, partID *string) error {
	switch op.Kind {
	case plan.KindCreateCategory:
		_, err := e.mutator.CreateCategory(ctx, op.CategoryPath, op.CategoryDesc, op.Structural)
		return err
	case plan.KindCreatePart:
		created, err := e.mutator.CreatePart(ctx, op.Part)
		if err != nil {
			return err
		}
		*partID = created.ID
		return nil
	case plan.KindUpdatePart:
		updated, err := e.mutator.UpdatePart(ctx, target, op.Fields)
		if err != nil {
			return err
		}
		*partID = updated.ID
		return nil
	case plan.KindAttachLink:
		if *partID == "" {
			*partID = target
		}
		return e.mutator.AttachSupplierLink(ctx, target, op.Link)
	case plan.KindSetPriceBreak:
		if *partID == "" {
			*partID = target
		}
		return e.mutator.SetPriceBreak(ctx, target, op.SupplierID, op.Quantity, op.Price, op.Currency)
	case plan.KindSetParameter:
		if *partID == "" {
			*partID = target
		}
		return e.mutator.SetParameter(ctx, target, op.ParamName, op.ParamValue)
	case plan.KindSetStock:
		if *partID == "" {
			*partID = target
		}
		return e.mutator.SetStock(ctx, target, op.SupplierID, op.Quantity)
	default:
		return errors.New("unknown operation kind: " + string(op.Kind))
	}
}
