// Package tabula maps Go values onto relational column storage and provides
// the types shared by its sub-packages.
//
// The conversion registry lives in package dbconv, table descriptions and DDL
// in package schema, and the persistence session in package db. This package
// holds the error kinds all of them return, the Logger contract, and the
// formats that configuration files can be written in.
package tabula

import (
	"fmt"
	"strings"
)

// Format is a serialization format for configuration files.
type Format int

const (
	NoFormat Format = iota
	JSON
	YAML
)

func (f Format) String() string {
	switch f {
	case NoFormat:
		return "none"
	case JSON:
		return "json"
	case YAML:
		return "yaml"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Extensions returns the file extensions, without leading period, that are
// recognized as holding data in Format f. The first one is the preferred
// extension.
func (f Format) Extensions() []string {
	switch f {
	case JSON:
		return []string{"json", "jsn"}
	case YAML:
		return []string{"yaml", "yml"}
	default:
		return nil
	}
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case NoFormat.String(), "":
		return NoFormat, nil
	case JSON.String():
		return JSON, nil
	case YAML.String():
		return YAML, nil
	default:
		return NoFormat, fmt.Errorf("unknown Format %q", s)
	}
}
