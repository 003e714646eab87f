package dbconv

import (
	"fmt"
	"strings"
)

// StorageType is the physical category of column that a value is stored in.
// The set of StorageTypes is closed; the zero value is not one of them.
type StorageType int

const (
	StorageInt32 StorageType = iota + 1
	StorageInt64
	StorageFloat32
	StorageFloat64
	StorageText
	StorageBlob
)

// StorageTypes returns every StorageType in declaration order.
func StorageTypes() []StorageType {
	return []StorageType{
		StorageInt32,
		StorageInt64,
		StorageFloat32,
		StorageFloat64,
		StorageText,
		StorageBlob,
	}
}

// IsTextOrBlob returns whether st holds variable-length character or byte
// data. Schema creation uses it to decide whether key columns need a length.
func (st StorageType) IsTextOrBlob() bool {
	return st == StorageText || st == StorageBlob
}

// IsNumeric returns whether st holds an integer or floating-point number.
func (st StorageType) IsNumeric() bool {
	switch st {
	case StorageInt32, StorageInt64, StorageFloat32, StorageFloat64:
		return true
	default:
		return false
	}
}

func (st StorageType) String() string {
	switch st {
	case StorageInt32:
		return "int32"
	case StorageInt64:
		return "int64"
	case StorageFloat32:
		return "float32"
	case StorageFloat64:
		return "float64"
	case StorageText:
		return "text"
	case StorageBlob:
		return "blob"
	default:
		return fmt.Sprintf("StorageType(%d)", int(st))
	}
}

// ParseStorageType parses the name of a StorageType as returned by
// StorageType.String. Case is ignored.
func ParseStorageType(s string) (StorageType, error) {
	normS := strings.ToLower(s)
	for _, st := range StorageTypes() {
		if st.String() == normS {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown StorageType %q", s)
}
