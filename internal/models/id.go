package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is an identifier decoded from either a JSON string or a JSON number.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (r *DoubleRound) UnmarshalJSON(data []byte) error {
	type plain DoubleRound
	aux := struct {
		*plain
		ID ID `json:"id"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.ID = string(aux.ID)
	return nil
}

func (b *DoubleBet) UnmarshalJSON(data []byte) error {
	type plain DoubleBet
	aux := struct {
		*plain
		ID      ID `json:"id"`
		RoundID ID `json:"round_id"`
		UserID  ID `json:"user_id"`
	}{plain: (*plain)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	b.ID = string(aux.ID)
	b.RoundID = string(aux.RoundID)
	b.UserID = string(aux.UserID)
	return nil
}
