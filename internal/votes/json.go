package votes

import (
	"encoding/json"
	"strings"
)

// Vote columns are serialized flat next to the row's fixed fields.
const (
	voteColumnPrefix   = "vote_"
	othersColumnPrefix = "vote_" + othersPrefix
)

// VoteColumn is the serialized column name of a party's vote.
func VoteColumn(party string) string { return voteColumnPrefix + party }

// OthersColumn is the serialized column name of a dissenters bucket.
func OthersColumn(dir string) string { return othersColumnPrefix + dir }

type plainVoteRow VoteRow

// MarshalJSON writes the row as one flat object.
func (r VoteRow) MarshalJSON() ([]byte, error) {
	fixed, err := json.Marshal(plainVoteRow(r))
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(fixed, &fields); err != nil {
		return nil, err
	}
	for party, dir := range r.Votes {
		fields[VoteColumn(party)], _ = json.Marshal(dir)
	}
	for dir, names := range r.Others {
		fields[OthersColumn(dir)], _ = json.Marshal(names)
	}
	return json.Marshal(fields)
}

// UnmarshalJSON reads a row written by MarshalJSON.
func (r *VoteRow) UnmarshalJSON(data []byte) error {
	var p plainVoteRow
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	p.Votes = make(map[string]string)
	p.Others = make(map[string]string)
	for key, value := range fields {
		var s string
		if dir, ok := strings.CutPrefix(key, othersColumnPrefix); ok {
			if err := json.Unmarshal(value, &s); err != nil {
				return err
			}
			p.Others[dir] = s
		} else if party, ok := strings.CutPrefix(key, voteColumnPrefix); ok {
			if err := json.Unmarshal(value, &s); err != nil {
				return err
			}
			p.Votes[party] = s
		}
	}

	*r = VoteRow(p)
	return nil
}
