package models

import "sort"

// Capability names a permission granted to a role.
type Capability string

const (
	CapRegisterSelf       Capability = "register.self"
	CapRegistrationWindow Capability = "registration.window"
	CapCatalogManage      Capability = "catalog.manage"
	CapGradesWrite        Capability = "grades.write"
	CapGradesReadAll      Capability = "grades.read.all"
	CapPaymentsSelf       Capability = "payments.self"
	CapPaymentsReadAll    Capability = "payments.read.all"
	CapAttendanceWrite    Capability = "attendance.write"
	CapSemestersManage    Capability = "semesters.manage"
	CapCalendarSync       Capability = "calendar.sync"
	CapSyllabusGenerate   Capability = "syllabus.generate"
)

func caps(list ...Capability) map[Capability]struct{} {
	set := make(map[Capability]struct{}, len(list))
	for _, c := range list {
		set[c] = struct{}{}
	}
	return set
}

// roleCapabilities is the only place role permissions are decided.
var roleCapabilities = map[UserRole]map[Capability]struct{}{
	RoleStudent: caps(
		CapRegisterSelf,
		CapRegistrationWindow,
		CapPaymentsSelf,
		CapCalendarSync,
	),
	RoleProfessor: caps(
		CapGradesWrite,
		CapAttendanceWrite,
		CapSyllabusGenerate,
		CapCalendarSync,
	),
	RoleManager: caps(
		CapRegistrationWindow,
		CapCatalogManage,
		CapGradesWrite,
		CapGradesReadAll,
		CapPaymentsReadAll,
		CapSemestersManage,
		CapSyllabusGenerate,
	),
	RoleAdmin: caps(
		CapRegistrationWindow,
		CapCatalogManage,
		CapGradesWrite,
		CapGradesReadAll,
		CapPaymentsReadAll,
		CapAttendanceWrite,
		CapSemestersManage,
		CapSyllabusGenerate,
	),
	RoleAlumni: caps(),
}

// Can reports whether the role holds the capability. Unknown roles hold nothing.
func (r UserRole) Can(c Capability) bool {
	_, ok := roleCapabilities[r][c]
	return ok
}

// Capabilities lists the role's capabilities in a stable order.
func (r UserRole) Capabilities() []Capability {
	out := make([]Capability, 0, len(roleCapabilities[r]))
	for c := range roleCapabilities[r] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
