package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

// Priority is how urgent a Note is. It is stored by name.
type Priority int

const (
	Low Priority = iota
	Normal
	High
)

var _ pflag.Value = (*Priority)(nil)

func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case Normal:
		return "normal"
	case High:
		return "high"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// Members returns every Priority.
func (Priority) Members() []Priority {
	return []Priority{Low, Normal, High}
}

// Set parses s, case-insensitively, into p.
func (p *Priority) Set(s string) error {
	for _, m := range p.Members() {
		if strings.EqualFold(s, m.String()) {
			*p = m
			return nil
		}
	}
	return fmt.Errorf("must be one of low, normal, or high")
}

// Type returns the name shown for the flag value in usage text.
func (p *Priority) Type() string {
	return "priority"
}

// Note is one row of the notes table.
type Note struct {
	ID       uuid.UUID `db:"id,pk"`
	Text     string
	Priority Priority
	Pinned   bool
	Created  time.Time
}

// TableName gives the notes table its name.
func (Note) TableName() string {
	return "notes"
}
