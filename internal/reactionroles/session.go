package reactionroles

import (
	"encoding/json"
	"time"

	"stockbot/internal/storage"
)

// Session is a posted prompt (one or more pages) with the bindings fixed at
// setup. It lives until its messages are deleted externally; events for
// unknown messages are then simply ignored.
type Session struct {
	ID        string
	GuildID   string
	ChannelID string
	CreatedBy string
	CreatedAt time.Time
	Messages  []PostedPage
}

// PostedPage ties a message to the entries whose reactions it carries.
type PostedPage struct {
	MessageID string  `json:"message_id"`
	Entries   []Entry `json:"entries"`
}

// entry finds the binding for e on messageID only. Reactions with an emoji
// from a different page of the same session do not match.
func (s *Session) entry(messageID string, e Identity) (Entry, bool) {
	for _, p := range s.Messages {
		if p.MessageID != messageID {
			continue
		}
		for _, en := range p.Entries {
			if en.Emoji.Equal(e) {
				return en, true
			}
		}
	}
	return Entry{}, false
}

func (s *Session) Bindings() int {
	n := 0
	for _, p := range s.Messages {
		n += len(p.Entries)
	}
	return n
}

type sessionData struct {
	Messages []PostedPage `json:"messages"`
}

func (s *Session) record() (storage.SessionRecord, error) {
	b, err := json.Marshal(sessionData{Messages: s.Messages})
	if err != nil {
		return storage.SessionRecord{}, err
	}
	return storage.SessionRecord{
		ID:        s.ID,
		GuildID:   s.GuildID,
		ChannelID: s.ChannelID,
		CreatedBy: s.CreatedBy,
		CreatedAt: s.CreatedAt,
		Data:      b,
	}, nil
}

func sessionFromRecord(r storage.SessionRecord) (*Session, error) {
	var d sessionData
	if err := json.Unmarshal(r.Data, &d); err != nil {
		return nil, err
	}
	return &Session{
		ID:        r.ID,
		GuildID:   r.GuildID,
		ChannelID: r.ChannelID,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
		Messages:  d.Messages,
	}, nil
}
