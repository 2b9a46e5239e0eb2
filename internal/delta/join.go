package delta

import (
	"strings"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
)

// JoinField names the ledger column a partner's line key matches.
type JoinField int

const (
	// JoinOrderID matches the line's order id against OrderRecord.OrderID.
	JoinOrderID JoinField = iota
	// JoinTrackingID matches the line key against OrderRecord.TrackingID.
	JoinTrackingID
)

func (f JoinField) String() string {
	if f == JoinTrackingID {
		return "tracking_id"
	}
	return "order_id"
}

// JoinSpec describes how a partner's lines meet the ledger.
type JoinSpec struct {
	Field JoinField
	// Provider, when set, restricts candidate orders to that courier provider.
	Provider string
}

var joinSpecs = map[constants.Partner]JoinSpec{
	constants.Brenger:         {Field: JoinTrackingID},
	constants.Wuunder:         {Field: JoinTrackingID},
	constants.SWDeVries:       {Field: JoinTrackingID},
	constants.Tadde:           {Field: JoinOrderID, Provider: "tadde"},
	constants.Transpoksi:      {Field: JoinOrderID, Provider: "transpoksi"},
	constants.LiberoLogistics: {Field: JoinOrderID, Provider: "libero_logistics"},
	constants.MagicMovers:     {Field: JoinOrderID, Provider: "magic_movers"},
}

// JoinSpecFor returns the join rule registered for partner.
func JoinSpecFor(partner constants.Partner) (JoinSpec, bool) {
	s, ok := joinSpecs[partner]
	return s, ok
}

// lineKey returns the value of l compared against the ledger.
func (s JoinSpec) lineKey(l entity.ShipmentLine) string {
	if s.Field == JoinOrderID && l.OrderID != "" {
		return strings.ToLower(l.OrderID)
	}
	return strings.ToLower(l.Key)
}

func (s JoinSpec) orderKey(o entity.OrderRecord) string {
	if s.Field == JoinTrackingID {
		return strings.ToLower(strings.TrimSpace(o.TrackingID))
	}
	return strings.ToLower(strings.TrimSpace(o.OrderID))
}

// index maps join keys to orders. The first order in ledger order wins.
func (s JoinSpec) index(orders []entity.OrderRecord) map[string]entity.OrderRecord {
	idx := make(map[string]entity.OrderRecord, len(orders))
	for _, o := range orders {
		if s.Provider != "" && !strings.EqualFold(o.CourierProvider, s.Provider) {
			continue
		}
		k := s.orderKey(o)
		if k == "" {
			continue
		}
		if _, seen := idx[k]; !seen {
			idx[k] = o
		}
	}
	return idx
}
