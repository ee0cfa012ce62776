package admission

type Reason string

const (
	ReasonSlotNoLongerAvailable Reason = "slot_no_longer_available"
	ReasonEventUnavailable      Reason = "event_unavailable"
)

// Rejection is an expected, visitor-facing refusal. Callers should re-resolve
// slots rather than retry.
type Rejection struct {
	Reason Reason
	Detail string
}

var (
	ErrSlotNoLongerAvailable = &Rejection{Reason: ReasonSlotNoLongerAvailable}
	ErrEventUnavailable      = &Rejection{Reason: ReasonEventUnavailable}
)

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return string(r.Reason) + ": " + r.Detail
}

// Is matches any Rejection with the same reason, so errors.Is works against
// the package sentinels.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Reason == r.Reason
}

func reject(reason Reason, detail string) *Rejection {
	return &Rejection{Reason: reason, Detail: detail}
}
