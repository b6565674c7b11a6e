package assembly

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"residential-cloud/internal/apperr"
)

// AttendanceType is how a unit attends an assembly.
type AttendanceType string

const (
	AttendancePresent AttendanceType = "PRESENT"
	AttendanceProxy   AttendanceType = "PROXY"
	AttendanceVirtual AttendanceType = "VIRTUAL"
)

// NormalizeAttendanceType validates an attendance type string.
func NormalizeAttendanceType(value string) (AttendanceType, bool) {
	switch t := AttendanceType(strings.ToUpper(strings.TrimSpace(value))); t {
	case AttendancePresent, AttendanceProxy, AttendanceVirtual:
		return t, true
	default:
		return "", false
	}
}

// Attendance is the confirmed attendance of one unit at an assembly.
type Attendance struct {
	AssemblyID       string          `json:"assemblyId"`
	UnitID           string          `json:"unitId"`
	Coefficient      decimal.Decimal `json:"coefficient"`
	Type             AttendanceType  `json:"attendanceType"`
	ProxyUserID      string          `json:"proxyUserId,omitempty"`
	ProxyDocumentURL string          `json:"proxyDocumentUrl,omitempty"`
	RegisteredAt     time.Time       `json:"registeredAt"`
}

// Validate checks the attendance record. Proxy fields are required for
// PROXY attendance and rejected otherwise.
func (a Attendance) Validate() error {
	if strings.TrimSpace(a.AssemblyID) == "" {
		return apperr.Validation("assemblyId", "assembly: assembly id is required")
	}
	if strings.TrimSpace(a.UnitID) == "" {
		return apperr.Validation("unitId", "assembly: unit id is required")
	}
	if a.Coefficient.IsNegative() || a.Coefficient.GreaterThan(hundred) {
		return apperr.Validation("coefficient", "assembly: coefficient must be between 0 and 100")
	}
	hasProxy := strings.TrimSpace(a.ProxyUserID) != "" || strings.TrimSpace(a.ProxyDocumentURL) != ""
	switch a.Type {
	case AttendanceProxy:
		if strings.TrimSpace(a.ProxyUserID) == "" {
			return apperr.Validation("proxyUserId", "assembly: proxy attendance requires the proxy user")
		}
		if strings.TrimSpace(a.ProxyDocumentURL) == "" {
			return apperr.Validation("proxyDocumentUrl", "assembly: proxy attendance requires the proxy document")
		}
	case AttendancePresent, AttendanceVirtual:
		if hasProxy {
			return apperr.Validation("proxyUserId", "assembly: proxy fields are only allowed for proxy attendance")
		}
	default:
		return apperr.Validation("attendanceType", "assembly: unsupported attendance type")
	}
	return nil
}

// CoefficientPresent sums the coefficients of the attendees.
func CoefficientPresent(attendance []Attendance) decimal.Decimal {
	total := decimal.Zero
	for _, a := range attendance {
		total = total.Add(a.Coefficient)
	}
	return total
}
