package billing

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// VatMode decides how VAT applies to a whole bill.
//
// On the wire it keeps the legacy shape of an "is VAT exempt" flag:
// false (Standard), true (Exempt) or "all" (Override).
type VatMode int

const (
	// VatModeStandard charges VAT and only accepts vatable items.
	VatModeStandard VatMode = iota
	// VatModeExempt charges no VAT and only accepts non-vatable items.
	VatModeExempt
	// VatModeOverride accepts any item mix and still charges VAT on the taxable part.
	VatModeOverride
)

func (m VatMode) String() string {
	switch m {
	case VatModeStandard:
		return "standard"
	case VatModeExempt:
		return "exempt"
	case VatModeOverride:
		return "all"
	default:
		return fmt.Sprintf("VatMode(%d)", int(m))
	}
}

func ParseVatMode(s string) (VatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard", "false", "":
		return VatModeStandard, nil
	case "exempt", "true":
		return VatModeExempt, nil
	case "all", "override":
		return VatModeOverride, nil
	default:
		return VatModeStandard, fmt.Errorf("unknown vat mode %q", s)
	}
}

func (m VatMode) MarshalJSON() ([]byte, error) {
	switch m {
	case VatModeStandard:
		return []byte("false"), nil
	case VatModeExempt:
		return []byte("true"), nil
	case VatModeOverride:
		return []byte(`"all"`), nil
	default:
		return nil, fmt.Errorf("invalid vat mode %d", int(m))
	}
}

func (m *VatMode) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*m = VatModeExempt
		} else {
			*m = VatModeStandard
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("vat mode must be true, false or \"all\": %w", err)
	}
	parsed, err := ParseVatMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m VatMode) Value() (driver.Value, error) {
	return m.String(), nil
}

func (m *VatMode) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*m = VatModeStandard
		return nil
	case string:
		parsed, err := ParseVatMode(v)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	case []byte:
		return m.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into VatMode", value)
	}
}
