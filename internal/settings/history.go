package settings

import "time"

// TypeHistory is the per-guild command history document.
const TypeHistory Type = "history"

const historyLimit = 20

// CommandRecord is one executed command in a guild's history.
type CommandRecord struct {
	ChannelID  string    `json:"channel_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Command    string    `json:"command"`
	Outcome    string    `json:"outcome"`
	At         time.Time `json:"at"`
}

// CommandHistory keeps the last executed commands of one guild.
type CommandHistory struct {
	Records []CommandRecord `json:"records"`
}

// AppendCommandRecord records an executed command, trimming to the history
// limit.
func AppendCommandRecord(s *Store, guildID string, rec CommandRecord) error {
	_, err := Modify(s, TypeHistory, guildID, func(h *CommandHistory) struct{} {
		h.Records = append(h.Records, rec)
		if len(h.Records) > historyLimit {
			h.Records = h.Records[len(h.Records)-historyLimit:]
		}
		return struct{}{}
	})
	return err
}

// FetchCommandHistory returns a guild's recorded commands, newest last.
func FetchCommandHistory(s *Store, guildID string) ([]CommandRecord, error) {
	doc, ok, err := Read[CommandHistory](s, TypeHistory, guildID, false)
	if err != nil || !ok {
		return nil, err
	}
	return doc.Records, nil
}
