package models

import "strings"

// MarkKind distinguishes negative and positive marks.
type MarkKind string

const (
	MarkNegative MarkKind = "negative"
	MarkPositive MarkKind = "positive"
)

// Valid reports whether the kind is one of the known marks.
func (k MarkKind) Valid() bool {
	return k == MarkNegative || k == MarkPositive
}

// MarkEvent is one entry of a student's append-only mark history.
type MarkEvent struct {
	At   int64    `json:"at"`
	Kind MarkKind `json:"kind"`
}

// Student is a learner on a class roster together with its mark counters.
// SpentMs is the time already burned against the current negative streak.
type Student struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Count         int         `json:"count"`
	PositiveCount int         `json:"positiveCount"`
	SpentMs       int64       `json:"spentMs"`
	Events        []MarkEvent `json:"events"`
}

// NameKey is the case-insensitive key used for roster uniqueness.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Clone returns a deep copy of the student.
func (s *Student) Clone() *Student {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Events != nil {
		cp.Events = make([]MarkEvent, len(s.Events))
		copy(cp.Events, s.Events)
	}
	return &cp
}
