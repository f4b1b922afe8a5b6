package domain

// MembershipPoll es una votación de admisión pendiente. Inmutable tras crearse.
type MembershipPoll struct {
	MessageID string
	UserID    string
	// CreatedAt en segundos epoch (UTC).
	CreatedAt int64
}

// Expired indica si la encuesta superó el timeout (en segundos) en el instante now.
func (p MembershipPoll) Expired(now, timeout int64) bool {
	return now-p.CreatedAt >= timeout
}

// Age devuelve los segundos transcurridos desde la creación.
func (p MembershipPoll) Age(now int64) int64 {
	if now < p.CreatedAt {
		return 0
	}
	return now - p.CreatedAt
}
