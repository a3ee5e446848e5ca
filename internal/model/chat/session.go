package chat

import "time"

// Session is the cached live state of one owner's active conversation.
//
// Prior holds persisted messages that are written back ahead of new turns;
// turns with Seq <= PriorSeq are already part of Prior.
type Session struct {
	OwnerID     string          `json:"ownerId"`
	ChatID      string          `json:"chatId,omitempty"`
	Turns       []Turn          `json:"turns"`
	Prior       []StoredMessage `json:"prior,omitempty"`
	PriorSeq    int64           `json:"priorSeq,omitempty"`
	LastTouched time.Time       `json:"lastTouched"`
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	s.Turns = CloneTurns(s.Turns)
	s.Prior = CloneStored(s.Prior)
	return s
}

// Messages returns the full persisted form of the session: Prior followed by
// the real turns it does not already cover, numbered from 1.
func (s Session) Messages() []StoredMessage {
	fresh := make([]Turn, 0, len(s.Turns))
	for _, turn := range s.Turns {
		if turn.Seq > s.PriorSeq {
			fresh = append(fresh, turn)
		}
	}
	added := ToStored(fresh)

	out := make([]StoredMessage, 0, len(s.Prior)+len(added))
	out = append(out, s.Prior...)
	out = append(out, added...)
	for i := range out {
		out[i].ID = int64(i + 1)
	}
	return out
}
