package appointment

import (
	"strconv"
	"strings"
)

// Department is the practitioner's specialty. Values are stored as-is, so
// existing constants must never be renumbered.
type Department int

const (
	DepartmentCardiology Department = iota + 1
	DepartmentNeurology
	DepartmentOrthopedics
	DepartmentPediatrics
	DepartmentGynecology
	DepartmentInternalMedicine
	DepartmentGeneralSurgery
	DepartmentOphthalmology
	DepartmentDermatology
	DepartmentPsychiatry
	DepartmentEmergency
	DepartmentRadiology
	DepartmentUrology
	DepartmentENT
	DepartmentOncology
	DepartmentAnesthesiology
	DepartmentPathology
	DepartmentPhysicalTherapy
)

var departmentNames = map[Department]string{
	DepartmentCardiology:       "Cardiology",
	DepartmentNeurology:        "Neurology",
	DepartmentOrthopedics:      "Orthopedics",
	DepartmentPediatrics:       "Pediatrics",
	DepartmentGynecology:       "Gynecology",
	DepartmentInternalMedicine: "InternalMedicine",
	DepartmentGeneralSurgery:   "GeneralSurgery",
	DepartmentOphthalmology:    "Ophthalmology",
	DepartmentDermatology:      "Dermatology",
	DepartmentPsychiatry:       "Psychiatry",
	DepartmentEmergency:        "Emergency",
	DepartmentRadiology:        "Radiology",
	DepartmentUrology:          "Urology",
	DepartmentENT:              "ENT",
	DepartmentOncology:         "Oncology",
	DepartmentAnesthesiology:   "Anesthesiology",
	DepartmentPathology:        "Pathology",
	DepartmentPhysicalTherapy:  "PhysicalTherapy",
}

var departmentDisplayNames = map[Department]string{
	DepartmentInternalMedicine: "Internal Medicine",
	DepartmentGeneralSurgery:   "General Surgery",
	DepartmentENT:              "Ear, Nose and Throat",
	DepartmentPhysicalTherapy:  "Physical Therapy",
}

// Departments lists every department in value order.
func Departments() []Department {
	out := make([]Department, 0, len(departmentNames))
	for d := DepartmentCardiology; d <= DepartmentPhysicalTherapy; d++ {
		out = append(out, d)
	}
	return out
}

func (d Department) Valid() bool {
	_, ok := departmentNames[d]
	return ok
}

func (d Department) String() string {
	if name, ok := departmentNames[d]; ok {
		return name
	}
	return "Department(" + strconv.Itoa(int(d)) + ")"
}

// DisplayName is the human readable label. It equals String for single-word
// departments.
func (d Department) DisplayName() string {
	if name, ok := departmentDisplayNames[d]; ok {
		return name
	}
	return d.String()
}

// ParseDepartment accepts the numeric value or the case-insensitive name.
func ParseDepartment(raw string) (Department, bool) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		d := Department(n)
		return d, d.Valid()
	}
	for d, name := range departmentNames {
		if strings.EqualFold(name, raw) {
			return d, true
		}
	}
	return 0, false
}
