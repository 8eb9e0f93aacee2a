package orders

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusPaid: true, StatusCancelled: true},
	StatusPaid:      {StatusCancelled: true},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
