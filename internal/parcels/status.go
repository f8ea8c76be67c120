package parcels

type Status string

const (
	StatusInAgency       Status = "IN_AGENCY"
	StatusInPallet       Status = "IN_PALLET"
	StatusInDispatch     Status = "IN_DISPATCH"
	StatusInContainer    Status = "IN_CONTAINER"
	StatusInTransit      Status = "IN_TRANSIT"
	StatusAtCustoms      Status = "AT_CUSTOMS"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelivered      Status = "DELIVERED"
	StatusReturned       Status = "RETURNED"
	StatusCancelled      Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusInAgency:       {StatusInPallet: true, StatusInDispatch: true, StatusCancelled: true},
	StatusInPallet:       {StatusInAgency: true, StatusInDispatch: true, StatusInContainer: true},
	StatusInDispatch:     {StatusInAgency: true, StatusInContainer: true, StatusInTransit: true},
	StatusInContainer:    {StatusInTransit: true},
	StatusInTransit:      {StatusAtCustoms: true},
	StatusAtCustoms:      {StatusOutForDelivery: true, StatusReturned: true},
	StatusOutForDelivery: {StatusDelivered: true, StatusReturned: true},
	StatusDelivered:      {},
	StatusReturned:       {StatusInAgency: true},
	StatusCancelled:      {},
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
