package matching

import "github.com/abdoElHodaky/backtestcore/pkg/model"

// handleFillContingencies implements OCO and OUO's fill-triggered behavior.
// Cascades are guarded by updatingContingencies so a cascade never
// re-enters itself.
func (e *Engine) handleFillContingencies(o *model.Order, tsEvent, tsInit int64) {
	if e.updatingContingencies {
		return
	}
	e.updatingContingencies = true
	defer func() { e.updatingContingencies = false }()

	switch o.ContingencyType {
	case model.ContingencyOCO:
		for _, linkedID := range o.LinkedOrderIDs {
			linked, ok := e.orders[linkedID]
			if !ok || linked.Status.IsTerminal() {
				continue
			}
			e.cancelOrderInternal(linked, tsEvent, tsInit)
		}
	case model.ContingencyOUO:
		e.syncOUOQuantities(o, tsEvent, tsInit)
	}
}

// handleCancelContingencies implements OCO/OUO/OTO's cancel-triggered
// behavior: canceling or expiring one leg cascades to its linked legs.
func (e *Engine) handleCancelContingencies(o *model.Order, tsEvent, tsInit int64) {
	if e.updatingContingencies {
		return
	}
	e.updatingContingencies = true
	defer func() { e.updatingContingencies = false }()

	switch o.ContingencyType {
	case model.ContingencyOCO, model.ContingencyOUO:
		for _, linkedID := range o.LinkedOrderIDs {
			linked, ok := e.orders[linkedID]
			if !ok || linked.Status.IsTerminal() {
				continue
			}
			e.cancelOrderInternal(linked, tsEvent, tsInit)
		}
	}
	for _, child := range e.childrenOf(o.ClientOrderID) {
		if !child.Status.IsTerminal() {
			e.cancelOrderInternal(child, tsEvent, tsInit)
		}
	}
}

// syncOUOQuantities implements the OUO rule: when one leg's leaves_qty
// changes, the linked leg's quantity is updated to match; a resulting
// leaves_qty of zero is a cancel, never a zero-quantity update.
func (e *Engine) syncOUOQuantities(o *model.Order, tsEvent, tsInit int64) {
	leaves := o.LeavesQty()
	for _, linkedID := range o.LinkedOrderIDs {
		linked, ok := e.orders[linkedID]
		if !ok || linked.Status.IsTerminal() {
			continue
		}
		if leaves.IsZero() {
			e.cancelOrderInternal(linked, tsEvent, tsInit)
			continue
		}
		newQty, err := linked.FilledQty.Add(leaves)
		if err != nil {
			continue
		}
		linked.Quantity = newQty
		e.publish(model.EventOrderUpdated, linked, tsEvent, tsInit)
	}
}

// acceptOTOChildren implements the OTO rule: on parent acceptance, each
// pending OTO child is accepted, inheriting the parent's position id.
func (e *Engine) acceptOTOChildren(parent *model.Order, tsEvent, tsInit int64) {
	children := e.childrenOf(parent.ClientOrderID)
	if len(children) == 0 {
		return
	}
	if parent.PositionID == "" {
		// Resolve the parent's position now so its id can propagate; it holds
		// zero quantity until the first fill.
		e.positionFor(parent)
	}
	for _, child := range children {
		if child.Status != model.StatusInitialized && child.Status != model.StatusSubmitted {
			continue
		}
		child.PositionID = parent.PositionID
		e.acceptAndRoute(child, tsEvent, tsInit)
	}
}

// rejectOTOChildren implements the OTO rule: on parent rejection, every
// pending child is rejected too.
func (e *Engine) rejectOTOChildren(parent *model.Order, tsEvent, tsInit int64) {
	for _, child := range e.childrenOf(parent.ClientOrderID) {
		if child.Status.IsTerminal() {
			continue
		}
		_ = e.transition(child, model.StatusRejected)
		e.publishRejected(model.EventOrderRejected, child, "PARENT_REJECTED: parent order was rejected", tsEvent, tsInit)
	}
}

// childrenOf returns a parent's OTO children in client-order-id order, so
// cascade events replay identically across runs.
func (e *Engine) childrenOf(parentID string) []*model.Order {
	var out []*model.Order
	for _, id := range e.sortedOrderIDs() {
		if o := e.orders[id]; o.IsChildOf(parentID) {
			out = append(out, o)
		}
	}
	return out
}

// cancelOrderInternal closes an open order without the PendingCancel step:
// PendingCancel belongs to the explicit cancel-command paths (ProcessCancel,
// ProcessCancelAll),
// while engine-initiated cancels (IOC/FOK remainder, OCO cascade, expiry of
// a linked leg) go straight to CANCELED, removes it from the matching core,
// and cascades contingencies.
func (e *Engine) cancelOrderInternal(o *model.Order, tsEvent, tsInit int64) {
	if o.Status.IsTerminal() {
		return
	}
	e.core.DeleteOrder(o.ClientOrderID)
	_ = e.transition(o, model.StatusCanceled)
	e.publish(model.EventOrderCanceled, o, tsEvent, tsInit)
	e.handleCancelContingencies(o, tsEvent, tsInit)
}
