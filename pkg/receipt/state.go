package receipt

import (
	"errors"

	"github.com/google/uuid"
)

// ErrNoSuchItem is returned when an update or removal names an unknown item id.
var ErrNoSuchItem = errors.New("no such line item")

// LineItem is one parsed or hand-entered (label, amount) pair from a receipt,
// independently markable as business spend. Amount is integer pence.
type LineItem struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Amount     int64  `json:"amount"`
	IsBusiness bool   `json:"is_business"`
}

// ItemPatch carries the user-edited fields of an item; nil means unchanged.
type ItemPatch struct {
	Label      *string
	Amount     *int64
	IsBusiness *bool
}

// State is the working set for one in-progress expense entry: the editable
// line-item list plus the two summary fields shown to the user. It belongs to
// exactly one entry session and is never shared between flows, so it needs no
// locking of its own. The reconciliation rule: every structural change to the
// item list (add, edit, remove, replace) recomputes ReportedBusiness as the
// sum of business-flagged amounts, replacing any manual override. Manual
// overrides of either summary field are sticky only until the next structural
// change. ReportedTotal starts as the OCR-estimated sum and is never
// auto-derived again once set.
type State struct {
	items            []LineItem
	reportedTotal    int64
	reportedBusiness int64
	gen              uint64
}

// NewState returns an empty working set.
func NewState() *State {
	return &State{}
}

// Generation identifies the current lifetime of the working set. Reset bumps
// it, which is how in-flight recognition results are invalidated.
func (s *State) Generation() uint64 { return s.gen }

// Items returns a copy of the current item list in display order.
func (s *State) Items() []LineItem {
	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// ReportedTotal is the authoritative receipt total field.
func (s *State) ReportedTotal() int64 { return s.reportedTotal }

// ReportedBusiness is the business-portion summary field.
func (s *State) ReportedBusiness() int64 { return s.reportedBusiness }

// AddItem appends a blank manual item and returns its id. Hand-added items
// default to business spend: the user adding a line by hand is almost always
// recording deductible purchases, unlike OCR output which starts unticked.
func (s *State) AddItem() string {
	it := LineItem{ID: uuid.NewString(), IsBusiness: true}
	s.items = append(s.items, it)
	s.reconcile()
	return it.ID
}

// UpdateItem applies a field patch to the named item. Labels are canonicalized
// and negative amounts rejected at this boundary so the list never holds an
// invalid value.
func (s *State) UpdateItem(id string, patch ItemPatch) error {
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if patch.Label != nil {
			s.items[i].Label = CleanLabel(*patch.Label)
		}
		if patch.Amount != nil {
			if *patch.Amount < 0 {
				return ErrInvalidAmount
			}
			s.items[i].Amount = *patch.Amount
		}
		if patch.IsBusiness != nil {
			s.items[i].IsBusiness = *patch.IsBusiness
		}
		s.reconcile()
		return nil
	}
	return ErrNoSuchItem
}

// RemoveItem deletes the named item.
func (s *State) RemoveItem(id string) error {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.reconcile()
			return nil
		}
	}
	return ErrNoSuchItem
}

// SetReportedTotal records a user edit of the total field. The value is free:
// it is never overwritten by item changes afterwards.
func (s *State) SetReportedTotal(pence int64) error {
	if pence < 0 {
		return ErrInvalidAmount
	}
	s.reportedTotal = pence
	return nil
}

// SetReportedBusiness records a manual override of the business portion. It
// holds only until the next structural change to the item list.
func (s *State) SetReportedBusiness(pence int64) error {
	if pence < 0 {
		return ErrInvalidAmount
	}
	s.reportedBusiness = pence
	return nil
}

// ReplaceItems installs a fresh extraction batch, seeding ReportedTotal with
// the sum of all candidates as the OCR guess. The call is ignored when gen no
// longer matches the state's generation: the form was reset while recognition
// was in flight and the result must not repopulate it.
func (s *State) ReplaceItems(gen uint64, items []LineItem) bool {
	if gen != s.gen {
		return false
	}
	s.items = append(s.items[:0], items...)
	var sum int64
	for _, it := range s.items {
		sum += it.Amount
	}
	s.reportedTotal = sum
	s.reconcile()
	return true
}

// Reset clears the working set and invalidates any in-flight recognition.
func (s *State) Reset() {
	s.items = nil
	s.reportedTotal = 0
	s.reportedBusiness = 0
	s.gen++
}

// reconcile recomputes the derived business portion from the item list.
// Amounts are integer pence, so the sum is exact at two decimal places.
func (s *State) reconcile() {
	var sum int64
	for _, it := range s.items {
		if it.IsBusiness {
			sum += it.Amount
		}
	}
	s.reportedBusiness = sum
}

// Finalize produces the (total, business) pair handed to persistence on save.
// Zero-valued summary fields fall back to the item sums so a pure manual
// entry of only the two fields, or only ticked items, still saves sensibly.
// An empty state finalizes to (0, 0); a zero-cost receipt is allowed.
func (s *State) Finalize() (total, business int64) {
	var all, biz int64
	for _, it := range s.items {
		all += it.Amount
		if it.IsBusiness {
			biz += it.Amount
		}
	}
	total = s.reportedTotal
	if total == 0 {
		total = all
	}
	business = s.reportedBusiness
	if business == 0 {
		business = biz
	}
	return total, business
}
