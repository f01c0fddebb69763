package authz

// Capability is a named permission granted to roles by the policy table
type Capability string

const (
	// CapViewPublic is the minimal capability: public content only. It is
	// the only capability a signed-out session holds.
	CapViewPublic Capability = "view-public"

	CapViewOwnProfile Capability = "view-own-profile"
	CapEditOwnProfile Capability = "edit-own-profile"
	CapViewOwnClasses Capability = "view-own-classes"

	CapViewStudents Capability = "view-students"
	CapViewFaculty  Capability = "view-faculty"

	CapManageUsers      Capability = "manage-users"
	CapManageFaculty    Capability = "manage-faculty"
	CapManageNotices    Capability = "manage-notices"
	CapManageAdmissions Capability = "manage-admissions"
)
